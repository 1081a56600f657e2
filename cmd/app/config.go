package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	modbusact "github.com/fermlab/fermentd/internal/actuators/modbus"
	mqttctrl "github.com/fermlab/fermentd/internal/controllers/mqtt"
	"github.com/fermlab/fermentd/internal/thermal"
)

const envPrefix = "FERMENTD_"

type Config struct {
	Controllers struct {
		HTTP HTTPConfig `koanf:"http"`
		MQTT MQTTConfig `koanf:"mqtt"`
	} `koanf:"controllers"`

	Store   StoreConfig   `koanf:"store"`
	Control ControlConfig `koanf:"control"`
	Log     LogConfig     `koanf:"log"`

	// Actuators maps a batch ID to the relay board driving its vessel.
	Actuators map[string]ActuatorConfig `koanf:"actuators"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type MQTTConfig struct {
	Enabled         bool   `koanf:"enabled"`
	BrokerURL       string `koanf:"broker_url"`
	ClientID        string `koanf:"client_id"`
	BaseTopic       string `koanf:"base_topic"`
	QoS             byte   `koanf:"qos"`
	RetainDecisions bool   `koanf:"retain_decisions"`
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

type ControlConfig struct {
	Interval        time.Duration `koanf:"interval"`
	Horizon         time.Duration `koanf:"horizon"`
	Step            time.Duration `koanf:"step"`
	OvershootWeight float64       `koanf:"overshoot_weight"`
	SwitchPenalty   float64       `koanf:"switch_penalty"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `koanf:"format"` // "text" | "json"
}

type ActuatorConfig struct {
	Addr       string        `koanf:"addr"`
	UnitID     byte          `koanf:"unit_id"`
	HeaterCoil uint16        `koanf:"heater_coil"`
	CoolerCoil *uint16       `koanf:"cooler_coil"`
	Timeout    time.Duration `koanf:"timeout"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Controllers.HTTP.Addr = ":8080"
	cfg.Store.Path = "fermentd.db"
	cfg.Control.Interval = time.Minute
	cfg.Control.Horizon = 4 * time.Hour
	cfg.Control.Step = 15 * time.Minute
	cfg.Control.OvershootWeight = 10
	cfg.Control.SwitchPenalty = 0.1
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig layers defaults, an optional config file and FERMENTD_*
// environment variables, in that order. A missing file falls back to
// defaults.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), parser); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config: %w", err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyFallbacks(&cfg)
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

func applyFallbacks(cfg *Config) {
	if cfg.Controllers.HTTP.Addr == "" {
		cfg.Controllers.HTTP.Addr = ":8080"
	}
	// Something must accept readings.
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "fermentd.db"
	}
	for id, a := range cfg.Actuators {
		if a.UnitID == 0 {
			a.UnitID = 1
			cfg.Actuators[id] = a
		}
	}
}

// envKeyTransform maps FERMENTD_-stripped environment keys to dotted
// config paths, e.g. CONTROLLERS_HTTP_ADDR -> controllers.http.addr.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "_")
	switch parts[0] {
	case "controllers":
		if len(parts) >= 3 {
			return parts[0] + "." + parts[1] + "." + strings.Join(parts[2:], "_")
		}
	case "store", "control", "log":
		if len(parts) >= 2 {
			return parts[0] + "." + strings.Join(parts[1:], "_")
		}
	}
	return s
}

// Settings converts the control section to optimizer settings.
func (c Config) Settings() thermal.Settings {
	set := thermal.DefaultSettings()
	if c.Control.Horizon > 0 {
		set.Horizon = c.Control.Horizon
	}
	if c.Control.Step > 0 {
		set.Step = c.Control.Step
	}
	if c.Control.OvershootWeight > 0 {
		set.OvershootWeight = c.Control.OvershootWeight
	}
	if c.Control.SwitchPenalty > 0 {
		set.SwitchPenalty = c.Control.SwitchPenalty
	}
	return set
}

// MQTT converts the mqtt section to the adapter's config.
func (c Config) MQTT() mqttctrl.Config {
	m := c.Controllers.MQTT
	return mqttctrl.Config{
		BrokerURL:       m.BrokerURL,
		ClientID:        m.ClientID,
		BaseTopic:       m.BaseTopic,
		QoS:             m.QoS,
		RetainDecisions: m.RetainDecisions,
		Username:        m.Username,
		Password:        m.Password,
	}
}

// Modbus converts one actuators entry to the switch config.
func (a ActuatorConfig) Modbus() modbusact.Config {
	return modbusact.Config{
		Addr:       a.Addr,
		UnitID:     a.UnitID,
		HeaterCoil: a.HeaterCoil,
		CoolerCoil: a.CoolerCoil,
		Timeout:    a.Timeout,
	}
}

// Logger builds the process logger from the log section.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.ToLower(c.Log.Format) == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}
