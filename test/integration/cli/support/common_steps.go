package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand executes a CLI command and records its result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	// Capture both stdout and stderr
	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// jsonPart returns the output starting at the first JSON value. Commands
// write logs to stderr, which precede JSON in combined output.
func (testCtx *TestContext) jsonPart() (string, error) {
	output := strings.TrimSpace(testCtx.LastOutput)
	for _, marker := range []string{"\n[", "\n{"} {
		if i := strings.LastIndex(output, marker); i >= 0 && json.Valid([]byte(output[i+1:])) {
			return output[i+1:], nil
		}
	}
	if json.Valid([]byte(output)) {
		return output, nil
	}
	return "", fmt.Errorf("no JSON found in output: %s", testCtx.LastOutput)
}

// theOutputShouldBeValidJSON verifies the output ends in a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.jsonPart()
	return err
}

// theJSONShouldContain verifies JSON contains a field path such as
// "crop.left" or "0.results".
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	_, err := testCtx.jsonField(field)
	return err
}

// theJSONFieldShouldBe compares a JSON field with its expected JSON text.
func (testCtx *TestContext) theJSONFieldShouldBe(field, expected string) error {
	val, err := testCtx.jsonField(field)
	if err != nil {
		return err
	}
	actual, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if string(actual) != expected && fmt.Sprint(val) != expected {
		return fmt.Errorf("field %s is %s, want %s", field, actual, expected)
	}
	return nil
}

func (testCtx *TestContext) jsonField(field string) (any, error) {
	raw, err := testCtx.jsonPart()
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return lookupField(data, field)
}

func lookupField(data any, field string) (any, error) {
	current := data
	parts := strings.Split(field, ".")
	for i, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
			}
			current = val
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index '%s' out of range in JSON array of %d", part, len(node))
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot navigate deeper into non-object field '%s'", strings.Join(parts[:i], "."))
		}
	}
	return current, nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}

	return nil
}

// theFileShouldExist verifies a file exists, relative to the working
// directory unless absolute.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	fullPath := testCtx.resolvePath(filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", fullPath)
	}
	return nil
}

// theFileShouldContain verifies a file contains specific content.
func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	fullPath := testCtx.resolvePath(filename)
	content, err := os.ReadFile(fullPath) //nolint:gosec // G304: Test file reading with controlled path
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", fullPath, err)
	}

	if !strings.Contains(string(content), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'\nActual content: %s",
			filename, expectedContent, string(content))
	}

	return nil
}

func (testCtx *TestContext) resolvePath(name string) string {
	name = testCtx.substituteCommandVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.WorkingDir, name)
}

// theEnvironmentVariableIsSetTo sets an environment variable for later commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
	return nil
}

// aConfigFileWithContent writes a YAML config file into the temp directory.
func (testCtx *TestContext) aConfigFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.TempPath(name)
	if err := os.WriteFile(path, []byte(content.Content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	testCtx.Variables[strings.TrimSuffix(name, filepath.Ext(name))] = path
	return nil
}

// substituteCommandVariables replaces {name} placeholders in commands.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	for name, value := range testCtx.Variables {
		command = strings.ReplaceAll(command, "{"+name+"}", value)
	}
	return command
}

// theOutputShouldListAvailableSubcommands verifies help output.
func (testCtx *TestContext) theOutputShouldListAvailableSubcommands() error {
	for _, sub := range []string{"decode", "region", "symbologies", "serve", "config"} {
		if !strings.Contains(testCtx.LastOutput, sub) {
			return fmt.Errorf("help output does not list subcommand '%s'\nOutput: %s", sub, testCtx.LastOutput)
		}
	}
	return nil
}

// globalFlagsShouldBeDocumented verifies the persistent flags appear in help.
func (testCtx *TestContext) globalFlagsShouldBeDocumented() error {
	for _, flag := range []string{"--config", "--rect", "--mount-angle", "--display-rotation", "--symbologies"} {
		if !strings.Contains(testCtx.LastOutput, flag) {
			return fmt.Errorf("global flag %s is not documented\nOutput: %s", flag, testCtx.LastOutput)
		}
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Command execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	// Output verification
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be (.+)$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Help output
	sc.Step(`^the output should list available subcommands$`, testCtx.theOutputShouldListAvailableSubcommands)
	sc.Step(`^global flags should be documented$`, testCtx.globalFlagsShouldBeDocumented)

	// Files and environment
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWithContent)
}
