package cfg

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got <nil>", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("error %q does not contain %q", err.Error(), sub)
	}
}

// newTestConfig registers flags on a fresh FlagSet, parses the given args,
// and returns the resulting App. This isolates each test from flag.CommandLine.
func newTestConfig(t *testing.T, args []string) App {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	return c
}

func TestRegister_Defaults(t *testing.T) {
	c := newTestConfig(t, nil)

	if c.Root != "" {
		t.Errorf("Root: want empty, got %q", c.Root)
	}
	if c.Target != "index.html" {
		t.Errorf("Target: want index.html, got %q", c.Target)
	}
	if c.BackupSuffix != ".pre-replace4" {
		t.Errorf("BackupSuffix: want .pre-replace4, got %q", c.BackupSuffix)
	}
	if c.DryRun {
		t.Error("DryRun: want false")
	}
	if c.LogJSON {
		t.Error("LogJSON: want false")
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel: want info, got %q", c.LogLevel)
	}
	if c.EnableTracing {
		t.Error("EnableTracing: want false")
	}
	if c.TraceSample != 1.0 {
		t.Errorf("TraceSample: want 1.0, got %v", c.TraceSample)
	}
	if c.RemoteEnabled() {
		t.Error("RemoteEnabled: want false by default")
	}
	if err := Validate(c); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestRegister_CLIOverrides(t *testing.T) {
	root := t.TempDir()
	c := newTestConfig(t, []string{
		"-root=" + root,
		"-target=home.html",
		"-backup-suffix=.bak",
		"-dry-run",
		"-log-json=true",
		"-backup-s3-bucket=site-backups",
		"-report-ssm-param=/app/site/index/sha256",
	})
	if c.Root != root || c.Target != "home.html" || c.BackupSuffix != ".bak" {
		t.Fatalf("paths not overridden: %+v", c)
	}
	if !c.DryRun || !c.LogJSON {
		t.Fatalf("bools not overridden: %+v", c)
	}
	if !c.RemoteEnabled() {
		t.Fatal("RemoteEnabled: want true")
	}
	if err := Validate(c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFillFromEnv(t *testing.T) {
	pfx := "TESTCFG1_"
	t.Setenv(pfx+"TARGET", "landing.html")
	t.Setenv(pfx+"BACKUP_SUFFIX", ".orig")
	t.Setenv(pfx+"DRY_RUN", "true")
	t.Setenv(pfx+"LOG_LEVEL", "debug")
	t.Setenv(pfx+"TRACE_SAMPLE", "0.25")
	t.Setenv(pfx+"METRICS_TEXTFILE", "/var/lib/node_exporter/fix.prom")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	FillFromEnv(fs, pfx, nil)

	if c.Target != "landing.html" || c.BackupSuffix != ".orig" {
		t.Fatalf("paths from env: %+v", c)
	}
	if !c.DryRun {
		t.Error("DryRun from env: want true")
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel from env: got %q", c.LogLevel)
	}
	if c.TraceSample != 0.25 {
		t.Errorf("TraceSample from env: got %v", c.TraceSample)
	}
	if c.MetricsTextfile != "/var/lib/node_exporter/fix.prom" {
		t.Errorf("MetricsTextfile from env: got %q", c.MetricsTextfile)
	}
}

func TestFillFromEnv_CLITakesPrecedence(t *testing.T) {
	pfx := "TESTCFG2_"
	t.Setenv(pfx+"TARGET", "from-env.html")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse([]string{"-target=from-cli.html"}); err != nil {
		t.Fatal(err)
	}

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.Target != "from-cli.html" {
		t.Fatalf("Target = %q, want from-cli.html", c.Target)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "overrides env") {
		t.Fatalf("override messages = %v", msgs)
	}
}

func TestFillFromEnv_InvalidEnvIgnored(t *testing.T) {
	pfx := "TESTCFG3_"
	t.Setenv(pfx+"MAX_ERROR_LINKS", "not-a-number")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.MaxErrorLinks != 5 {
		t.Errorf("MaxErrorLinks: want 5 (default), got %d", c.MaxErrorLinks)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "ignoring invalid env") {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestValidate_OK(t *testing.T) {
	c := newTestConfig(t, []string{
		"-enable-tracing=true",
		"-otlp-endpoint=otel:4317",
		"-trace-sample=0.2",
		"-include-error-links=true",
		"-max-error-links=10",
	})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidCombined(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	c := newTestConfig(t, []string{
		"-root=" + file,
		"-target=../index.html",
		"-log-level=nope",
		"-stacktrace-level=alsonope",
		"-trace-sample=2.0",
		"-enable-tracing=true",
		"-otlp-endpoint=otel",
		"-include-error-links=true",
		"-max-error-links=0",
		"-backup-s3-bucket=b",
		"-backup-s3-prefix=/abs",
		"-report-ssm-param=no-slash",
	})

	err := Validate(c)
	wantErrContains(t, err, "invalid ROOT")
	wantErrContains(t, err, "invalid TARGET")
	wantErrContains(t, err, "invalid LOG_LEVEL")
	wantErrContains(t, err, "invalid STACKTRACE_LEVEL")
	wantErrContains(t, err, "invalid TRACE_SAMPLE")
	wantErrContains(t, err, "OTLP_ENDPOINT must be host:port")
	wantErrContains(t, err, "MAX_ERROR_LINKS")
	wantErrContains(t, err, "BACKUP_S3_PREFIX")
	wantErrContains(t, err, "REPORT_SSM_PARAM")
}

func TestValidate_BackupSuffix(t *testing.T) {
	wantErrContains(t, Validate(newTestConfig(t, []string{"-backup-suffix="})), "BACKUP_SUFFIX must not be empty")
	wantErrContains(t, Validate(newTestConfig(t, []string{"-backup-suffix=/../x"})), "invalid BACKUP_SUFFIX")
}

func TestValidate_MissingRoot(t *testing.T) {
	c := newTestConfig(t, []string{"-root=" + filepath.Join(t.TempDir(), "missing")})
	wantErrContains(t, Validate(c), "invalid ROOT")
}

func TestValidate_TracingNeedsEndpoint(t *testing.T) {
	c := newTestConfig(t, []string{"-enable-tracing=true"})
	wantErrContains(t, Validate(c), "OTLP_ENDPOINT required")
}
