package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
)

const DefaultPresetName = "default"

type Config struct {
	HTTPAddr    string
	Log         LogConfig
	DB          DBConfig
	JWTSecret   string
	TokenTTL    time.Duration
	TigerBeetle TigerBeetleConfig
	Simulation  SimulationConfig
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// Enabled reports whether a Postgres host was configured. Without one the
// server keeps runs in memory only.
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name,
	)
}

type TigerBeetleConfig struct {
	Enabled        bool
	Address        string
	ClusterID      uint64
	CashLedger     uint32
	ContractLedger uint32
}

type SimulationConfig struct {
	StepInterval time.Duration
	PresetsPath  string
	Presets      map[string]model.SimulationConfig
}

func Defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		Log:      LogConfig{Level: "info"},
		DB:       DBConfig{Port: "5432"},
		TokenTTL: 24 * time.Hour,
		TigerBeetle: TigerBeetleConfig{
			Address:        "3001",
			ClusterID:      1,
			CashLedger:     10,
			ContractLedger: 20,
		},
		Simulation: SimulationConfig{
			Presets: map[string]model.SimulationConfig{
				DefaultPresetName: model.DefaultSimulationConfig(),
			},
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.DB.Enabled() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when DB_HOST is set"))
	}
	if c.TigerBeetle.Enabled && !c.DB.Enabled() {
		errs = append(errs, errors.New("TB_ENABLED needs DB_HOST for participant accounts"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	if c.Simulation.StepInterval < 0 {
		errs = append(errs, fmt.Errorf("SIM_STEP_INTERVAL must not be negative, got %s", c.Simulation.StepInterval))
	}
	if c.TigerBeetle.Enabled && c.TigerBeetle.CashLedger == c.TigerBeetle.ContractLedger {
		errs = append(errs, errors.New("tigerbeetle cash and contract ledgers must differ"))
	}
	for _, name := range c.PresetNames() {
		if err := c.Simulation.Presets[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("preset %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Preset returns the named parameter set.
func (c Config) Preset(name string) (model.SimulationConfig, error) {
	p, ok := c.Simulation.Presets[name]
	if !ok {
		return model.SimulationConfig{}, fmt.Errorf("%w: %q", model.ErrPresetNotFound, name)
	}
	return p, nil
}

func (c Config) PresetNames() []string {
	names := make([]string, 0, len(c.Simulation.Presets))
	for name := range c.Simulation.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
