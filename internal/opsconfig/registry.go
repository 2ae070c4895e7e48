package opsconfig

import "github.com/bigskies-observatory/opsd/internal/opsmodel"

// actionFactories and domeBackends are the process-wide registries named in
// the design notes: each backend/action implementation registers a
// constructor under a known string identifier at package init time, and
// Config resolves actions_module/dome.module against them at load time.
// These two maps are the only process-wide mutable state in the daemon.
var (
	actionFactories = map[string]map[string]opsmodel.ActionFactory{}
	domeBackends    = map[string]DomeBackendFactory{}
)

// DomeBackendFactory constructs a DomeBackend from its config params block.
type DomeBackendFactory func(params map[string]interface{}) (opsmodel.DomeBackend, error)

// RegisterDomeBackend adds a dome backend constructor under name. Called
// from the init() of each plugins/domebackends implementation.
func RegisterDomeBackend(name string, factory DomeBackendFactory) {
	domeBackends[name] = factory
}

// NewDomeBackend resolves and constructs the dome backend named by module.
func NewDomeBackend(module string, params map[string]interface{}) (opsmodel.DomeBackend, error) {
	factory, ok := domeBackends[module]
	if !ok {
		return nil, errUnregistered("dome backend", module)
	}
	return factory(params)
}

// RegisterActionModule registers a full set of action factories (keyed by
// action type name) under a module identifier matching actions_module.
// Called from the init() of each plugins/actions implementation.
func RegisterActionModule(module string, factories map[string]opsmodel.ActionFactory) {
	actionFactories[module] = factories
}

// ActionModule returns the resolved factory set for the given module name.
func ActionModule(module string) (map[string]opsmodel.ActionFactory, error) {
	set, ok := actionFactories[module]
	if !ok {
		return nil, errUnregistered("actions module", module)
	}
	return set, nil
}

func errUnregistered(kind, name string) error {
	return &unregisteredError{kind: kind, name: name}
}

type unregisteredError struct {
	kind, name string
}

func (e *unregisteredError) Error() string {
	return e.kind + " " + e.name + " is not registered"
}
