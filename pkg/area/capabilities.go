package area

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	enginesMu sync.RWMutex
	engines   = map[string]func() Engine{
		EngineMonotoneChain: func() Engine { return MonotoneChain{} },
	}
)

// registerEngine makes an optional engine available. Build-tagged engine
// files call it from init.
func registerEngine(name string, fn func() Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = fn
}

// Capabilities reports which hull engines this binary can serve. It is
// detected once at startup and passed to whatever needs to decide whether
// hull mode is possible.
type Capabilities struct {
	Engines []string `json:"engines"`
	Default string   `json:"default"`
}

// DetectCapabilities snapshots the registered engines.
func DetectCapabilities() Capabilities {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)

	c := Capabilities{Engines: names}
	if _, ok := engines[EngineMonotoneChain]; ok {
		c.Default = EngineMonotoneChain
	} else if len(names) > 0 {
		c.Default = names[0]
	}
	return c
}

// HullAvailable reports whether any hull engine is present.
func (c Capabilities) HullAvailable() bool {
	return len(c.Engines) > 0
}

// Has reports whether the named engine is present.
func (c Capabilities) Has(name string) bool {
	for _, n := range c.Engines {
		if n == name {
			return true
		}
	}
	return false
}

// Engine returns the named engine, or the default one when name is empty.
func (c Capabilities) Engine(name string) (Engine, error) {
	if name == "" {
		name = c.Default
	}
	if !c.Has(name) {
		return nil, fmt.Errorf("hull engine %q not available (have %s)", name, strings.Join(c.Engines, ", "))
	}
	enginesMu.RLock()
	fn := engines[name]
	enginesMu.RUnlock()
	return fn(), nil
}
