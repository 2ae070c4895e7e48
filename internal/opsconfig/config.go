// Package opsconfig parses and validates the observatory site configuration
// and resolves the dynamically-named action and dome backend modules.
package opsconfig

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable, process-lifetime configuration loaded once at
// startup. Nothing in the core mutates it after Load returns.
type Config struct {
	Daemon                string            `mapstructure:"daemon"`
	LogName               string            `mapstructure:"log_name"`
	ControlMachines       []string          `mapstructure:"control_machines"`
	PipelineMachines      []string          `mapstructure:"pipeline_machines"`
	LoopDelay             time.Duration     `mapstructure:"loop_delay"`
	SiteLatitude          string            `mapstructure:"site_latitude"`
	SiteLongitude         string            `mapstructure:"site_longitude"`
	SiteElevation         float64           `mapstructure:"site_elevation"`
	SunAltitudeLimit      float64           `mapstructure:"sun_altitude_limit"`
	ActionsModule         string            `mapstructure:"actions_module"`
	ScriptsModule         string            `mapstructure:"scripts_module"`
	Dome                  *DomeConfig       `mapstructure:"dome"`
	EnvironmentDaemon     string            `mapstructure:"environment_daemon"`
	EnvironmentBackendURL string            `mapstructure:"environment_backend_url"`
	EnvironmentConditions []ConditionConfig `mapstructure:"environment_conditions"`
	Telemetry             *TelemetryConfig  `mapstructure:"telemetry"`
	Audit                 *AuditConfig      `mapstructure:"audit"`
	RPCListenAddress      string            `mapstructure:"rpc_listen_address"`

	// ControlMachineIPs/PipelineMachineIPs hold the resolved, parsed form of
	// ControlMachines/PipelineMachines for fast caller-IP comparison.
	ControlMachineIPs  map[string]bool `mapstructure:"-"`
	PipelineMachineIPs map[string]bool `mapstructure:"-"`
}

// DomeConfig selects and configures the dome backend module.
type DomeConfig struct {
	Module                string                 `mapstructure:"module"`
	OpenTimeout           time.Duration          `mapstructure:"open_timeout"`
	CloseTimeout          time.Duration          `mapstructure:"close_timeout"`
	MovementTimeout       time.Duration          `mapstructure:"movement_timeout"`
	HeartbeatOpenTimeout  time.Duration          `mapstructure:"heartbeat_open_timeout"`
	HeartbeatCloseTimeout time.Duration          `mapstructure:"heartbeat_close_timeout"`
	HeartbeatTimeout      time.Duration          `mapstructure:"heartbeat_timeout"`
	Params                map[string]interface{} `mapstructure:"params"`
}

// ConditionConfig describes one named environment condition and its sensors.
type ConditionConfig struct {
	Label   string         `mapstructure:"label"`
	Sensors []SensorConfig `mapstructure:"sensors"`
}

// SensorConfig describes one sensor within a condition, naming the nested
// "sensor.parameter" key pair it is extracted from.
type SensorConfig struct {
	Label      string        `mapstructure:"label"`
	Sensor     string        `mapstructure:"sensor"`
	Parameter  string        `mapstructure:"parameter"`
	UnsafeKey  string        `mapstructure:"unsafe_key"`
	WarningKey string        `mapstructure:"warning_key"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

// TelemetryConfig, when non-nil, starts the MQTT telemetry publisher.
type TelemetryConfig struct {
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
}

// AuditConfig, when non-nil, starts the pgx-backed audit log.
type AuditConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Load reads and validates the JSON config file at path, returning a fully
// resolved Config. Registries (actions, dome backends) must already be
// populated via RegisterActionModule/RegisterDomeBackend before Load is called so
// that ActionsModule/Dome.Module can be checked.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{
		LoopDelay: 10 * time.Second,
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.ControlMachineIPs = toIPSet(cfg.ControlMachines)
	cfg.PipelineMachineIPs = toIPSet(cfg.PipelineMachines)

	return cfg, nil
}

func toIPSet(machines []string) map[string]bool {
	set := make(map[string]bool, len(machines))
	for _, m := range machines {
		set[m] = true
	}
	return set
}

func (c *Config) validate() error {
	var missing []string
	if c.Daemon == "" {
		missing = append(missing, "daemon")
	}
	if c.LogName == "" {
		missing = append(missing, "log_name")
	}
	if c.ActionsModule == "" {
		missing = append(missing, "actions_module")
	}
	if c.EnvironmentDaemon == "" {
		missing = append(missing, "environment_daemon")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config missing required keys: %v", missing)
	}
	if c.LoopDelay <= 0 {
		return fmt.Errorf("loop_delay must be positive")
	}
	if c.SunAltitudeLimit == 0 {
		c.SunAltitudeLimit = -6 // civil twilight, matches CLASP-style site defaults
	}
	if c.Dome != nil {
		if _, ok := domeBackends[c.Dome.Module]; !ok {
			return fmt.Errorf("dome.module %q is not registered", c.Dome.Module)
		}
		if c.Dome.OpenTimeout <= 0 {
			c.Dome.OpenTimeout = 60 * time.Second
		}
		if c.Dome.CloseTimeout <= 0 {
			c.Dome.CloseTimeout = 60 * time.Second
		}
		if c.Dome.MovementTimeout <= 0 {
			c.Dome.MovementTimeout = 120 * time.Second
		}
		if c.Dome.HeartbeatOpenTimeout <= 0 {
			c.Dome.HeartbeatOpenTimeout = 30 * time.Second
		}
		if c.Dome.HeartbeatCloseTimeout <= 0 {
			c.Dome.HeartbeatCloseTimeout = 300 * time.Second
		}
		if c.Dome.HeartbeatTimeout <= 0 {
			c.Dome.HeartbeatTimeout = 60 * time.Second
		}
	}
	if _, ok := actionFactories[c.ActionsModule]; !ok {
		return fmt.Errorf("actions_module %q is not registered", c.ActionsModule)
	}
	for _, cond := range c.EnvironmentConditions {
		for _, s := range cond.Sensors {
			if s.Label == "" || s.Sensor == "" || s.Parameter == "" {
				return fmt.Errorf("environment_conditions[%s]: sensor entries require label, sensor, and parameter", cond.Label)
			}
		}
	}
	return nil
}

// IsControlMachine reports whether addr (a caller's source IP) is
// whitelisted to issue control-class commands.
func (c *Config) IsControlMachine(addr string) bool {
	return c.ControlMachineIPs[hostOnly(addr)]
}

// IsPipelineMachine reports whether addr is whitelisted for pipeline
// notification calls.
func (c *Config) IsPipelineMachine(addr string) bool {
	return c.PipelineMachineIPs[hostOnly(addr)]
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
