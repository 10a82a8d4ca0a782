package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/cucumber/godog"
)

// theScanServerIsRunning starts an in-process server for request steps.
func (testCtx *TestContext) theScanServerIsRunning() error {
	if testCtx.HTTPTestServer != nil {
		return nil
	}
	return testCtx.createTestHTTPServer(nil)
}

// theScanServerIsRunningWithALimitOfRequestsPerMinute starts a rate limited server.
func (testCtx *TestContext) theScanServerIsRunningWithALimitOfRequestsPerMinute(limit int) error {
	testCtx.stopTestHTTPServer()
	return testCtx.createTestHTTPServer(&server.Limits{RequestsPerMinute: limit})
}

// iStartTheServerWith starts the server binary.
func (testCtx *TestContext) iStartTheServerWith(command string) error {
	return testCtx.StartServer(command)
}

// theHealthEndpointShouldRespondWithStatus verifies the health endpoint.
func (testCtx *TestContext) theHealthEndpointShouldRespondWithStatus(expectedStatus int) error {
	if err := testCtx.iGET("/health"); err != nil {
		return err
	}
	return testCtx.theResponseStatusShouldBe(expectedStatus)
}

// iGET makes a GET request to the specified endpoint.
func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.doRequest(http.MethodGet, endpoint, "", nil)
}

// iMakeAnOPTIONSRequestTo sends a CORS preflight request.
func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.doRequest(http.MethodOptions, endpoint, "", nil)
}

// iRequestTheRegionFor posts a scan rectangle to /scan/region.
func (testCtx *TestContext) iRequestTheRegionFor(rect string) error {
	v, err := parseRectValues(rect)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`{"rect":{"left":%d,"top":%d,"right":%d,"bottom":%d}}`, v[0], v[1], v[2], v[3])
	return testCtx.doRequest(http.MethodPost, "/scan/region", "application/json", strings.NewReader(body))
}

// iUploadTheFrameWith posts a frame created by an image step to /scan/frame
// with the form fields of the table.
func (testCtx *TestContext) iUploadTheFrameWith(name string, fields *godog.Table) error {
	path, ok := testCtx.Variables[name]
	if !ok {
		return fmt.Errorf("no frame named %q", name)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Test image created by the scenario
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if fields != nil {
		for _, row := range fields.Rows {
			if len(row.Cells) != 2 {
				return errors.New("form table rows need a field and a value")
			}
			if err := writer.WriteField(row.Cells[0].Value, row.Cells[1].Value); err != nil {
				return err
			}
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return testCtx.doRequest(http.MethodPost, "/scan/frame", writer.FormDataContentType(), &buf)
}

// iUploadTheFrame posts a frame without extra fields.
func (testCtx *TestContext) iUploadTheFrame(name string) error {
	return testCtx.iUploadTheFrameWith(name, nil)
}

func (testCtx *TestContext) doRequest(method, endpoint, contentType string, body io.Reader) error {
	client := &http.Client{Timeout: 10 * time.Second}

	req, err := http.NewRequest(method, testCtx.GetServerURL()+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		testCtx.LastError = err
		testCtx.LastExitCode = 1
		return nil // verification steps report the failure
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastOutput = string(respBody)
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(respBody)
	testCtx.LastError = nil
	testCtx.LastExitCode = 0
	if resp.StatusCode >= 400 {
		testCtx.LastExitCode = 1
		testCtx.LastError = fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	testCtx.LastHTTPHeaders = make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			testCtx.LastHTTPHeaders[key] = values[0]
		}
	}
	return nil
}

// theResponseStatusShouldBe verifies the last HTTP status code.
func (testCtx *TestContext) theResponseStatusShouldBe(expectedStatus int) error {
	if testCtx.LastHTTPStatusCode == 0 {
		return fmt.Errorf("no HTTP response recorded: %w", testCtx.LastError)
	}
	if testCtx.LastHTTPStatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expectedStatus, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseHeaderShouldBe verifies a response header.
func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	actual := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if actual != expected {
		return fmt.Errorf("header %s is %q, want %q", name, actual, expected)
	}
	return nil
}

// iSendSignalToTheServer sends a signal to the server process.
func (testCtx *TestContext) iSendSignalToTheServer(signalName string) error {
	var signal os.Signal

	switch strings.ToUpper(signalName) {
	case "SIGTERM":
		signal = syscall.SIGTERM
	case "SIGINT":
		signal = syscall.SIGINT
	default:
		return fmt.Errorf("unsupported signal: %s", signalName)
	}

	return testCtx.SendSignalToServer(signal)
}

// theServerShouldShutdownGracefully waits for the process to exit cleanly.
func (testCtx *TestContext) theServerShouldShutdownGracefully() error {
	if testCtx.ServerProcess == nil {
		return errors.New("no server process running")
	}

	done := make(chan error, 1)
	go func() {
		state, err := testCtx.ServerProcess.Wait()
		if err == nil && !state.Success() {
			err = fmt.Errorf("server exited with %s", state)
		}
		done <- err
	}()

	select {
	case err := <-done:
		testCtx.ServerProcess = nil
		return err
	case <-time.After(15 * time.Second):
		return errors.New("server did not shut down within timeout")
	}
}

func parseRectValues(s string) ([4]int, error) {
	var v [4]int
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return v, fmt.Errorf("invalid rect %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return v, fmt.Errorf("invalid rect %q: %w", s, err)
		}
		v[i] = n
	}
	return v, nil
}

// RegisterServerSteps registers all server mode step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	// Server lifecycle
	sc.Step(`^the scan server is running$`, testCtx.theScanServerIsRunning)
	sc.Step(`^the scan server is running with a limit of (\d+) requests per minute$`,
		testCtx.theScanServerIsRunningWithALimitOfRequestsPerMinute)
	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.iStartTheServerWith)
	sc.Step(`^the health endpoint should respond with status (\d+)$`, testCtx.theHealthEndpointShouldRespondWithStatus)
	sc.Step(`^I send a (\w+) signal to the server$`, testCtx.iSendSignalToTheServer)
	sc.Step(`^the server should shut down gracefully$`, testCtx.theServerShouldShutdownGracefully)

	// Requests
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I request the region for "([^"]*)"$`, testCtx.iRequestTheRegionFor)
	sc.Step(`^I upload the frame "([^"]*)" with:$`, testCtx.iUploadTheFrameWith)
	sc.Step(`^I upload the frame "([^"]*)"$`, testCtx.iUploadTheFrame)

	// Responses
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
