package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "SYSDOCK_"

// Config carries runtime options for sysdock.
type Config struct {
	Interval       time.Duration `yaml:"interval"`
	CPUWindow      time.Duration `yaml:"cpu_window"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	MaxLogRows     int           `yaml:"max_log_rows"`
	Sort           string        `yaml:"sort"`
	Limit          int           `yaml:"limit"`
	Format         string        `yaml:"format"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	EnableGPU      bool          `yaml:"gpu"`
	PingCount      int           `yaml:"ping_count"`
}

func Default() Config {
	return Config{
		Interval:       time.Second,
		CPUWindow:      100 * time.Millisecond,
		CommandTimeout: 2 * time.Second,
		MaxLogRows:     0,
		Sort:           "cpu",
		Limit:          0,
		Format:         "table",
		LogLevel:       "warn",
		LogFormat:      "auto",
		EnableGPU:      true,
		PingCount:      3,
	}
}

// Flags binds Config fields to a pflag set. Only flags the user actually
// set override file and environment values.
type Flags struct {
	fs         *pflag.FlagSet
	vals       Config
	configPath string
	envFile    string
}

// BindFlags registers the persistent sysdock flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, vals: Default()}
	d := f.vals
	fs.StringVar(&f.configPath, "config", "", "YAML config file (env "+EnvPrefix+"CONFIG)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load if present")
	fs.DurationVar(&f.vals.Interval, "interval", d.Interval, "refresh and sampling interval")
	fs.DurationVar(&f.vals.CPUWindow, "cpu-window", d.CPUWindow, "gap between the two CPU readings")
	fs.DurationVar(&f.vals.CommandTimeout, "command-timeout", d.CommandTimeout, "budget for each external tool")
	fs.IntVar(&f.vals.MaxLogRows, "max-log-rows", d.MaxLogRows, "cap on retained sampler rows (0 = unbounded)")
	fs.StringVar(&f.vals.Sort, "sort", d.Sort, "process sort column: cpu|mem|pid|name")
	fs.IntVar(&f.vals.Limit, "limit", d.Limit, "max processes to print (0 = all)")
	fs.StringVarP(&f.vals.Format, "format", "o", d.Format, "output format: table|json|yaml")
	fs.StringVar(&f.vals.LogLevel, "log-level", d.LogLevel, "debug|info|warn|error")
	fs.StringVar(&f.vals.LogFormat, "log-format", d.LogFormat, "auto|text|json")
	fs.BoolVar(&f.vals.EnableGPU, "gpu", d.EnableGPU, "enable GPU enumeration")
	fs.IntVar(&f.vals.PingCount, "ping-count", d.PingCount, "echo requests per latency probe")
	return f
}

// Load resolves the final Config. Precedence, lowest first: defaults, YAML
// file, dotenv file, process environment, explicit flags.
func (f *Flags) Load() (Config, error) {
	cfg := Default()

	// godotenv.Load never overrides variables already in the environment.
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f.envFile, err)
		}
	}

	path := f.configPath
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	f.fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "interval":
			cfg.Interval = f.vals.Interval
		case "cpu-window":
			cfg.CPUWindow = f.vals.CPUWindow
		case "command-timeout":
			cfg.CommandTimeout = f.vals.CommandTimeout
		case "max-log-rows":
			cfg.MaxLogRows = f.vals.MaxLogRows
		case "sort":
			cfg.Sort = f.vals.Sort
		case "limit":
			cfg.Limit = f.vals.Limit
		case "format":
			cfg.Format = f.vals.Format
		case "log-level":
			cfg.LogLevel = f.vals.LogLevel
		case "log-format":
			cfg.LogFormat = f.vals.LogFormat
		case "gpu":
			cfg.EnableGPU = f.vals.EnableGPU
		case "ping-count":
			cfg.PingCount = f.vals.PingCount
		}
	})
	return cfg, cfg.Validate()
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from
// the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays SYSDOCK_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	dur("INTERVAL", &cfg.Interval)
	dur("CPU_WINDOW", &cfg.CPUWindow)
	dur("COMMAND_TIMEOUT", &cfg.CommandTimeout)
	num("MAX_LOG_ROWS", &cfg.MaxLogRows)
	num("LIMIT", &cfg.Limit)
	num("PING_COUNT", &cfg.PingCount)
	str("SORT", &cfg.Sort)
	str("FORMAT", &cfg.Format)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	if v, ok := get("GPU"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sGPU: %w", EnvPrefix, err))
		} else {
			cfg.EnableGPU = b
		}
	}
	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare numbers of seconds.
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	return time.ParseDuration(v + "s")
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"interval":        c.Interval,
		"cpu-window":      c.CPUWindow,
		"command-timeout": c.CommandTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	if c.MaxLogRows < 0 {
		errs = append(errs, fmt.Errorf("max-log-rows must not be negative, got %d", c.MaxLogRows))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if c.PingCount <= 0 {
		errs = append(errs, fmt.Errorf("ping-count must be positive, got %d", c.PingCount))
	}
	switch strings.ToLower(c.Sort) {
	case "cpu", "mem", "memory", "pid", "name":
	default:
		errs = append(errs, fmt.Errorf("unknown sort %q", c.Sort))
	}
	switch c.Format {
	case "table", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger builds the process logger. Logs go to w (stderr in the CLI) so
// table, JSON and TUI output on stdout stay clean. The auto format picks
// text for a terminal and JSON otherwise.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := c.level()
	opts := &slog.HandlerOptions{Level: lvl}
	format := c.LogFormat
	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
