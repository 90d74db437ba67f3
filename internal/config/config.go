package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
)

// EnvPrefix prefixes environment overrides, e.g. COLLATZ_WORKERS=8.
const EnvPrefix = "COLLATZ"

// Config is the verifier configuration after merging defaults, the optional
// config file, environment and command-line flags.
type Config struct {
	Workers            int           `mapstructure:"workers" json:"workers"`
	BatchSize          uint64        `mapstructure:"batch_size" json:"batch_size"`
	Threshold          string        `mapstructure:"threshold" json:"threshold"`
	MaxSteps           uint64        `mapstructure:"max_steps" json:"max_steps"`
	EarlyExit          string        `mapstructure:"early_exit" json:"early_exit"`
	BacklogSlots       int           `mapstructure:"backlog_slots" json:"backlog_slots"`
	Database           string        `mapstructure:"database" json:"database"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" json:"checkpoint_interval"`
	CheckpointEvery    uint64        `mapstructure:"checkpoint_every" json:"checkpoint_every"`
	SaveRetries        int           `mapstructure:"save_retries" json:"save_retries"`
	StatusInterval     time.Duration `mapstructure:"status_interval" json:"status_interval"`
	MetricsAddr        string        `mapstructure:"metrics_addr" json:"metrics_addr"`
}

// defaults lists every known key. A key missing here is rejected in config files.
var defaults = map[string]any{
	"workers":             0,
	"batch_size":          engine.DefaultBatchSize,
	"threshold":           "2^68",
	"max_steps":           engine.DefaultMaxSteps,
	"early_exit":          string(engine.EarlyExitThreshold),
	"backlog_slots":       0,
	"database":            "collatz.db",
	"checkpoint_interval": engine.DefaultCheckpointInterval,
	"checkpoint_every":    0,
	"save_retries":        engine.DefaultSaveRetries,
	"status_interval":     10 * time.Second,
	"metrics_addr":        "",
}

// New returns a viper instance with defaults and COLLATZ_* environment
// overrides installed.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag whose name matches a key ("batch-size" for
// batch_size). Flags override the file and environment only when set.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key := range defaults {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load reads the optional config file, merges everything, and validates
// the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := checkKnownKeys(v); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkKnownKeys rejects misspelled keys, which would otherwise be ignored.
func checkKnownKeys(v *viper.Viper) error {
	var unknown []string
	for _, key := range v.AllKeys() {
		if _, ok := defaults[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment, where New picks up the COLLATZ_* ones. Variables already set
// are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ThresholdNumber parses the configured threshold.
func (c Config) ThresholdNumber() (ir.Number, error) {
	return ir.ParseThreshold(c.Threshold)
}

// EngineOptions converts the configuration to engine constructor parameters.
// A zero checkpoint_interval disables the timer and a zero save_retries
// disables retrying.
func (c Config) EngineOptions() (engine.Options, error) {
	threshold, err := c.ThresholdNumber()
	if err != nil {
		return engine.Options{}, fmt.Errorf("threshold: %w", err)
	}
	interval := c.CheckpointInterval
	if interval == 0 {
		interval = -1
	}
	retries := c.SaveRetries
	if retries == 0 {
		retries = -1
	}
	return engine.Options{
		Workers:            c.Workers,
		BatchSize:          c.BatchSize,
		Threshold:          threshold,
		MaxSteps:           c.MaxSteps,
		EarlyExit:          engine.EarlyExit(c.EarlyExit),
		BacklogSlots:       c.BacklogSlots,
		CheckpointInterval: interval,
		CheckpointEvery:    c.CheckpointEvery,
		SaveRetries:        retries,
	}, nil
}
