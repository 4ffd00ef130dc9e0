package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/hasu/internal/domain"
	"github.com/MrSnakeDoc/hasu/internal/logger"
)

// ErrVersion is returned by Parse when --version was requested.
var ErrVersion = errors.New("version requested")

type Config struct {
	ConfigFile string // optional YAML file the values below may come from

	TemplatePath string        // mustache template rendered every pass
	OutputPath   string        // reserved; rendered text goes to stdout
	Tags         []string      // tag filter applied to health queries
	Address      string        // registry API base URL, ex: http://localhost:8500/v1
	Interval     time.Duration // sleep between passes

	HealthWorkers  int           // concurrent health queries per pass (1 = sequential)
	RequestTimeout time.Duration // per registry request

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	StatusAddr      string        // status HTTP listen address, empty = disabled
	ShutdownTimeout time.Duration // status server graceful shutdown

	// Redis render publisher, disabled when RedisAddr is empty.
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RedisChannel        string
	RedisConnectTimeout time.Duration
}

// option describes one setting reachable from a flag, an environment
// variable and the YAML file (keyed by the flag name).
type option struct {
	name   string
	short  string
	env    string
	def    string
	noOpt  string
	usage  string
	secret bool
}

var options = []option{
	{name: "config", short: "c", env: "HASU_CONFIG", usage: "optional YAML file holding any of these options"},
	{name: "input", short: "i", env: "HASU_INPUT", def: "/etc/hasu/haproxy.mustache", usage: "template of haproxy configuration file"},
	{name: "output", short: "o", env: "HASU_OUTPUT", def: "/etc/haproxy/haproxy.cfg", usage: "path of output haproxy configuration file (reserved, output goes to stdout)"},
	{name: "tags", short: "t", env: "HASU_TAGS", def: "release", usage: "comma separated tags that services are filtered on"},
	{name: "address", short: "a", env: "HASU_ADDRESS", def: "http://localhost:8500/v1", usage: "http address of a consul agent"},
	{name: "interval", env: "HASU_INTERVAL", def: "10", usage: "seconds between two renders"},
	{name: "health-workers", env: "HASU_HEALTH_WORKERS", def: "1", usage: "concurrent health queries per pass"},
	{name: "request-timeout", env: "HASU_REQUEST_TIMEOUT", def: "5s", usage: "timeout of each consul request"},
	{name: "log-level", env: "HASU_LOG_LEVEL", def: "info", usage: "debug, info, warn or error"},
	{name: "pretty-log", env: "HASU_PRETTY_LOG", def: "false", noOpt: "true", usage: "human readable colored logs"},
	{name: "status-addr", env: "HASU_STATUS_ADDR", usage: "listen address of the status HTTP server, ex: :9090 (disabled when empty)"},
	{name: "redis-addr", env: "HASU_REDIS_ADDR", usage: "redis address to publish renders to (disabled when empty)"},
	{name: "redis-password", env: "HASU_REDIS_PASSWORD", usage: "redis password", secret: true},
	{name: "redis-db", env: "HASU_REDIS_DB", def: "0", usage: "redis database number"},
	{name: "redis-channel", env: "HASU_REDIS_CHANNEL", def: "hasu:render", usage: "redis channel notified when the render changes"},
	{name: "redis-connect-timeout", env: "HASU_REDIS_CONNECT_TIMEOUT", def: "30s", usage: "total time to retry the initial redis connection"},
}

const helpText = `Watch services change in Consul and dynamically configures
HAProxy backends. The process runs continuously, monitoring
all the backends for changes. This allows HAProxy configuration to be
updated in real time using Consul.
`

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hasu", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false
	fs.BoolP("help", "h", false, "print this help menu")
	fs.Bool("version", false, "print version and exit")
	for _, o := range options {
		fs.StringP(o.name, o.short, o.def, o.usage)
		if o.noOpt != "" {
			fs.Lookup(o.name).NoOptDefVal = o.noOpt
		}
	}
	return fs
}

// Usage writes the help text and flag summary to w.
func Usage(w io.Writer) {
	fs := newFlagSet()
	_, _ = fmt.Fprintf(w, "Usage: hasu [options]\n\n%s\nOptions:\n%s", helpText, fs.FlagUsages())
}

// Load parses the process arguments against the process environment.
func Load() (*Config, error) {
	return Parse(os.Args[1:], os.Getenv)
}

// Parse resolves every option with precedence flag > environment >
// YAML file > default, then validates the result. It returns
// pflag.ErrHelp for -h/--help, ErrVersion for --version and a
// *domain.InvalidConfigurationError for anything unusable.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, pflag.ErrHelp
		}
		return nil, &domain.InvalidConfigurationError{Field: "args", Value: strings.Join(args, " "), Err: err}
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, pflag.ErrHelp
	}
	if v, _ := fs.GetBool("version"); v {
		return nil, ErrVersion
	}
	if fs.NArg() > 0 {
		return nil, &domain.InvalidConfigurationError{Field: "args", Value: fs.Arg(0), Err: errors.New("unexpected argument")}
	}

	values, err := resolve(fs, getenv)
	if err != nil {
		return nil, err
	}
	return build(values)
}

func resolve(fs *pflag.FlagSet, getenv func(string) string) (map[string]string, error) {
	lookup := func(o option) (string, bool) {
		if f := fs.Lookup(o.name); f != nil && f.Changed {
			return f.Value.String(), true
		}
		if v := getenv(o.env); v != "" {
			return v, true
		}
		return "", false
	}

	configFile, _ := lookup(options[0])
	file, err := loadFile(configFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(options))
	for _, o := range options {
		if v, ok := lookup(o); ok {
			values[o.name] = v
			continue
		}
		if v, ok := file[o.name]; ok {
			values[o.name] = v
			continue
		}
		values[o.name] = o.def
	}
	values["config"] = configFile
	return values, nil
}

// loadFile reads the optional YAML file. Keys are option names.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.InvalidConfigurationError{Field: "config", Value: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &domain.InvalidConfigurationError{Field: "config", Value: path, Err: fmt.Errorf("failed to parse config yaml: %w", err)}
	}

	for key := range raw {
		if !knownOption(key) || key == "config" {
			return nil, &domain.InvalidConfigurationError{Field: "config", Value: path, Err: fmt.Errorf("unknown option %q", key)}
		}
	}
	return raw, nil
}

func knownOption(name string) bool {
	for _, o := range options {
		if o.name == name {
			return true
		}
	}
	return false
}

func build(v map[string]string) (*Config, error) {
	cfg := &Config{
		ConfigFile:      v["config"],
		TemplatePath:    v["input"],
		OutputPath:      v["output"],
		Tags:            splitAndTrim(v["tags"]),
		LogLevel:        strings.ToLower(v["log-level"]),
		StatusAddr:      v["status-addr"],
		ShutdownTimeout: 5 * time.Second,
		RedisAddr:       v["redis-addr"],
		RedisPassword:   v["redis-password"],
		RedisChannel:    v["redis-channel"],
	}

	var err error
	if cfg.Address, err = parseAddress(v["address"]); err != nil {
		return nil, invalid("address", v["address"], err)
	}
	if cfg.Interval, err = parseInterval(v["interval"]); err != nil {
		return nil, invalid("interval", v["interval"], err)
	}
	if cfg.HealthWorkers, err = parsePositiveInt(v["health-workers"]); err != nil {
		return nil, invalid("health-workers", v["health-workers"], err)
	}
	if cfg.RequestTimeout, err = parsePositiveDuration(v["request-timeout"]); err != nil {
		return nil, invalid("request-timeout", v["request-timeout"], err)
	}
	if cfg.PrettyLog, err = strconv.ParseBool(v["pretty-log"]); err != nil {
		return nil, invalid("pretty-log", v["pretty-log"], err)
	}
	if _, err = logger.ParseLevel(cfg.LogLevel); err != nil {
		return nil, invalid("log-level", v["log-level"], err)
	}
	if cfg.RedisDB, err = strconv.Atoi(v["redis-db"]); err != nil || cfg.RedisDB < 0 {
		return nil, invalid("redis-db", v["redis-db"], errors.New("must be a non-negative integer"))
	}
	if cfg.RedisConnectTimeout, err = parsePositiveDuration(v["redis-connect-timeout"]); err != nil {
		return nil, invalid("redis-connect-timeout", v["redis-connect-timeout"], err)
	}
	if cfg.TemplatePath == "" {
		return nil, invalid("input", "", errors.New("template path is required"))
	}

	return cfg, nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.RedisPassword != "" {
		c.RedisPassword = "***REDACTED***"
	}
	return c
}

func invalid(field, value string, err error) error {
	for _, o := range options {
		if o.name == field && o.secret {
			value = "***"
		}
	}
	return &domain.InvalidConfigurationError{Field: field, Value: value, Err: err}
}

// parseAddress requires an absolute http(s) URL and strips trailing slashes.
func parseAddress(s string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// parseInterval takes whole seconds ("10") or a Go duration ("1m30s").
func parseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	return parsePositiveDuration(s)
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func parsePositiveInt(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if i < 1 {
		return 0, errors.New("must be at least 1")
	}
	return i, nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
