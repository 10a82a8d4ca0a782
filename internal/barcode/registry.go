package barcode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultEngine is the engine used when none is configured.
const DefaultEngine = "zxing"

// ErrNoBackend is returned when an engine name is not registered.
var ErrNoBackend = errors.New("barcode: no decoder backend registered under that name")

var engines = map[string]func() (Engine, error){
	"zxing": func() (Engine, error) { return NewZXingEngine() },
}

// NewEngine returns a fresh engine by name. An empty name selects DefaultEngine.
func NewEngine(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultEngine
	}
	ctor, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrNoBackend, name, strings.Join(EngineNames(), ", "))
	}
	return ctor()
}

// EngineNames lists the registered engine names.
func EngineNames() []string {
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
