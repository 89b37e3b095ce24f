package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/joho/godotenv"
)

// Load merges .env (if present) and the process environment over Defaults,
// then reads the presets file named by SIM_PRESETS. The result is not
// validated.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if cfg.Simulation.PresetsPath != "" {
		presets, err := LoadPresets(cfg.Simulation.PresetsPath)
		if err != nil {
			return nil, err
		}
		for name, p := range presets {
			cfg.Simulation.Presets[name] = p
		}
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr(&cfg.HTTPAddr, "HTTP_ADDR")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.DB.User, "DB_USER")
	setStr(&cfg.DB.Password, "DB_PASSWORD")
	setStr(&cfg.DB.Host, "DB_HOST")
	setStr(&cfg.DB.Port, "DB_PORT")
	setStr(&cfg.DB.Name, "DB_NAME")
	setStr(&cfg.JWTSecret, "JWT_SECRET")
	setStr(&cfg.TigerBeetle.Address, "TB_ADDRESS")
	setStr(&cfg.Simulation.PresetsPath, "SIM_PRESETS")

	if err := setBool(&cfg.Log.Pretty, "LOG_PRETTY"); err != nil {
		return err
	}
	if err := setBool(&cfg.TigerBeetle.Enabled, "TB_ENABLED"); err != nil {
		return err
	}
	if err := setUint64(&cfg.TigerBeetle.ClusterID, "TB_CLUSTER_ID"); err != nil {
		return err
	}
	if err := setDuration(&cfg.TokenTTL, "TOKEN_TTL"); err != nil {
		return err
	}
	return setDuration(&cfg.Simulation.StepInterval, "SIM_STEP_INTERVAL")
}

type presetFile struct {
	Presets map[string]toml.Primitive `toml:"presets"`
}

// LoadPresets decodes [presets.<name>] tables. Keys missing from a table keep
// their value from model.DefaultSimulationConfig.
func LoadPresets(path string) (map[string]model.SimulationConfig, error) {
	var raw presetFile
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode presets %s: %w", path, err)
	}
	presets := make(map[string]model.SimulationConfig, len(raw.Presets))
	for name, prim := range raw.Presets {
		p := model.DefaultSimulationConfig()
		if err := md.PrimitiveDecode(prim, &p); err != nil {
			return nil, fmt.Errorf("decode preset %q: %w", name, err)
		}
		presets[name] = p
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode presets %s: unknown key %s", path, undecoded[0])
	}
	return presets, nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setUint64(dst *uint64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
