package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, env(nil))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.TemplatePath != "/etc/hasu/haproxy.mustache" {
		t.Errorf("TemplatePath = %q", cfg.TemplatePath)
	}
	if cfg.OutputPath != "/etc/haproxy/haproxy.cfg" {
		t.Errorf("OutputPath = %q", cfg.OutputPath)
	}
	if !reflect.DeepEqual(cfg.Tags, []string{"release"}) {
		t.Errorf("Tags = %v, want [release]", cfg.Tags)
	}
	if cfg.Address != "http://localhost:8500/v1" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", cfg.Interval)
	}
	if cfg.HealthWorkers != 1 {
		t.Errorf("HealthWorkers = %d, want 1", cfg.HealthWorkers)
	}
	if cfg.StatusAddr != "" || cfg.RedisAddr != "" {
		t.Errorf("optional servers should be disabled by default")
	}
	if cfg.PrettyLog {
		t.Errorf("PrettyLog = true, want false")
	}
}

func TestParseFlags(t *testing.T) {
	args := []string{
		"-i", "/tmp/t.mustache",
		"--output=/tmp/out.cfg",
		"--tags", "release, eu",
		"--address", "https://consul.internal:8501/v1/",
		"--interval", "30",
		"--health-workers", "4",
		"--pretty-log",
	}

	cfg, err := Parse(args, env(nil))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.TemplatePath != "/tmp/t.mustache" || cfg.OutputPath != "/tmp/out.cfg" {
		t.Errorf("paths = %q %q", cfg.TemplatePath, cfg.OutputPath)
	}
	if !reflect.DeepEqual(cfg.Tags, []string{"release", "eu"}) {
		t.Errorf("Tags = %v", cfg.Tags)
	}
	if cfg.Address != "https://consul.internal:8501/v1" {
		t.Errorf("Address = %q, trailing slash should be stripped", cfg.Address)
	}
	if cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v", cfg.Interval)
	}
	if cfg.HealthWorkers != 4 {
		t.Errorf("HealthWorkers = %d", cfg.HealthWorkers)
	}
	if !cfg.PrettyLog {
		t.Errorf("PrettyLog = false, want true")
	}
}

func TestParsePrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hasu.yaml")
	content := "tags: canary\ninterval: 20\ninput: /from/file.mustache\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	vars := map[string]string{
		"HASU_CONFIG":   file,
		"HASU_INTERVAL": "15",
		"HASU_TAGS":     "from-env",
	}

	cfg, err := Parse([]string{"--tags", "from-flag"}, env(vars))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.Tags, []string{"from-flag"}) {
		t.Errorf("Tags = %v, flag should win", cfg.Tags)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("Interval = %v, env should beat file", cfg.Interval)
	}
	if cfg.TemplatePath != "/from/file.mustache" {
		t.Errorf("TemplatePath = %q, file should beat default", cfg.TemplatePath)
	}
	if cfg.ConfigFile != file {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		vars  map[string]string
		field string
	}{
		{name: "interval not a number", args: []string{"--interval", "soon"}, field: "interval"},
		{name: "interval zero", args: []string{"--interval", "0"}, field: "interval"},
		{name: "interval negative env", vars: map[string]string{"HASU_INTERVAL": "-5"}, field: "interval"},
		{name: "address without scheme", args: []string{"--address", "localhost:8500"}, field: "address"},
		{name: "address ftp", args: []string{"--address", "ftp://consul/v1"}, field: "address"},
		{name: "address without host", args: []string{"--address", "http:///v1"}, field: "address"},
		{name: "workers zero", args: []string{"--health-workers", "0"}, field: "health-workers"},
		{name: "log level", args: []string{"--log-level", "trace"}, field: "log-level"},
		{name: "unknown flag", args: []string{"--nope"}, field: "args"},
		{name: "positional", args: []string{"extra"}, field: "args"},
		{name: "missing config file", args: []string{"-c", "/nonexistent/hasu.yaml"}, field: "config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, env(tt.vars))
			var cfgErr *domain.InvalidConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Parse() error = %v, want InvalidConfigurationError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestParseUnknownFileKey(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hasu.yaml")
	if err := os.WriteFile(file, []byte("listen: :80\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Parse([]string{"--config", file}, env(nil))
	if domain.Kind(err) != domain.KindInvalidConfiguration {
		t.Errorf("Parse() error = %v, want InvalidConfiguration", err)
	}
}

func TestParseHelpAndVersion(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {"--help"}} {
		if _, err := Parse(args, env(nil)); !errors.Is(err, pflag.ErrHelp) {
			t.Errorf("Parse(%v) error = %v, want ErrHelp", args, err)
		}
	}
	if _, err := Parse([]string{"--version"}, env(nil)); !errors.Is(err, ErrVersion) {
		t.Errorf("Parse(--version) error = %v, want ErrVersion", err)
	}
}

func TestUsage(t *testing.T) {
	var b strings.Builder
	Usage(&b)
	out := b.String()
	for _, want := range []string{"--input", "--output", "--tags", "--address", "--interval", "Consul"} {
		if !strings.Contains(out, want) {
			t.Errorf("Usage() missing %q", want)
		}
	}
	if !strings.Contains(out, "dynamically configures\nHAProxy backends") {
		t.Error("Usage() should describe the watcher")
	}
	for _, unwanted := range []string{"reload command", "destination path"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("Usage() should not mention %q", unwanted)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{RedisPassword: "hunter2"}
	if got := cfg.Redacted().RedisPassword; got == "hunter2" {
		t.Error("Redacted() leaked the password")
	}
	if cfg.RedisPassword != "hunter2" {
		t.Error("Redacted() modified the original")
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{input: "", expected: nil},
		{input: "release", expected: []string{"release"}},
		{input: " release , 'eu' ,", expected: []string{"release", "eu"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
