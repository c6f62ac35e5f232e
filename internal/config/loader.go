package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file. VOXLOOM_-prefixed variables always win; the bare
// OPENAI_API_KEY fills in only when the file left the key empty.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("VOXLOOM_OPENAI_API_KEY"); key != "" {
		cfg.Validator.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Validator.APIKey == "" {
		cfg.Validator.APIKey = key
	}
	if dsn := os.Getenv("VOXLOOM_POSTGRES_DSN"); dsn != "" {
		cfg.Memory.PostgresDSN = dsn
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !cfg.STT.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("stt.engine %q is invalid; valid values: whisper, whisper-native", cfg.STT.Engine))
	}
	if cfg.STT.Engine == STTWhisperServer && cfg.STT.URL == "" {
		errs = append(errs, errors.New("stt.url is required when stt.engine is whisper"))
	}
	if cfg.STT.Engine == STTWhisperNative && cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path is required when stt.engine is whisper-native"))
	}

	if !cfg.Memory.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("memory.driver %q is invalid; valid values: postgres, memory", cfg.Memory.Driver))
	}
	if cfg.Memory.Driver == MemoryPostgres && cfg.Memory.PostgresDSN == "" {
		errs = append(errs, errors.New("memory.postgres_dsn is required when memory.driver is postgres"))
	}
	if cfg.Memory.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("memory.history_limit %d must not be negative", cfg.Memory.HistoryLimit))
	}

	if cfg.Capture.ListenTimeout < 0 {
		errs = append(errs, errors.New("capture.listen_timeout must not be negative"))
	}
	if cfg.Capture.MaxPhraseDuration < 0 {
		errs = append(errs, errors.New("capture.max_phrase_duration must not be negative"))
	}
	if cfg.Validator.Timeout < 0 {
		errs = append(errs, errors.New("validator.timeout must not be negative"))
	}

	// Non-fatal configuration smells.
	if cfg.Memory.Driver == MemoryInProcess {
		slog.Warn("memory.driver is \"memory\"; the exchange log will not survive restarts")
	}
	if cfg.Validator.APIKey == "" {
		slog.Info("validator.api_key is empty; remote validation disabled, running offline-only")
	}

	return errors.Join(errs...)
}

// SlogLevel maps the configured level to its [slog.Level].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
