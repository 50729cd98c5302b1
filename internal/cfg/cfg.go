package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/keithlinneman/htmlsplice/internal/log"
	"github.com/keithlinneman/htmlsplice/internal/pathutil"
)

// EnvPrefix is prepended to upper-cased flag names when reading overrides
// from the environment, e.g. -backup-suffix -> HTMLSPLICE_BACKUP_SUFFIX.
const EnvPrefix = "HTMLSPLICE_"

type App struct {
	Root              string
	Target            string
	BackupSuffix      string
	DryRun            bool
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	EnableTracing     bool
	OTLPEndpoint      string
	TraceSample       float64
	MetricsTextfile   string
	BackupS3Bucket    string
	BackupS3Prefix    string
	ReportSSMParam    string
}

// Register binds all config fields to the given FlagSet with defaults inline.
// With no flags set the tool patches <root>/index.html, where root is the
// parent of the directory holding the binary.
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Root, "root", "", "site root containing the target file (default: parent of the binary's directory)")
	fs.StringVar(&c.Target, "target", "index.html", "file name under -root to patch")
	fs.StringVar(&c.BackupSuffix, "backup-suffix", ".pre-replace4", "suffix appended to the target path for the backup copy")
	fs.BoolVar(&c.DryRun, "dry-run", false, "locate markers and report the change without writing anything")
	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", false, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 1.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.MetricsTextfile, "metrics-textfile", "", "write run metrics to this path in node_exporter textfile format")
	fs.StringVar(&c.BackupS3Bucket, "backup-s3-bucket", "", "also upload the backup copy to this s3 bucket")
	fs.StringVar(&c.BackupS3Prefix, "backup-s3-prefix", "site-backups", "s3 key prefix for uploaded backups")
	fs.StringVar(&c.ReportSSMParam, "report-ssm-param", "", "ssm parameter to store the patched document sha256 in")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Target and backup naming
	if !pathutil.IsPlainName(c.Target) {
		errs = append(errs, fmt.Errorf("invalid TARGET %q (must be a plain file name)", c.Target))
	}
	if c.BackupSuffix == "" {
		errs = append(errs, fmt.Errorf("BACKUP_SUFFIX must not be empty (backup would overwrite the target)"))
	} else if !pathutil.IsPlainName(c.Target + c.BackupSuffix) {
		errs = append(errs, fmt.Errorf("invalid BACKUP_SUFFIX %q (backup must stay next to the target)", c.BackupSuffix))
	}
	if c.Root != "" {
		if fi, err := os.Stat(c.Root); err != nil {
			errs = append(errs, fmt.Errorf("invalid ROOT %q: %w", c.Root, err))
		} else if !fi.IsDir() {
			errs = append(errs, fmt.Errorf("invalid ROOT %q (not a directory)", c.Root))
		}
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Error link limits
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	// Tracing
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Remote backup / reporting
	if c.BackupS3Bucket != "" && strings.HasPrefix(c.BackupS3Prefix, "/") {
		errs = append(errs, fmt.Errorf("BACKUP_S3_PREFIX must not start with / (got %q)", c.BackupS3Prefix))
	}
	if c.ReportSSMParam != "" && !strings.HasPrefix(c.ReportSSMParam, "/") {
		errs = append(errs, fmt.Errorf("REPORT_SSM_PARAM must be a path starting with / (got %q)", c.ReportSSMParam))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RemoteEnabled reports whether any AWS-backed option is set.
func (c App) RemoteEnabled() bool {
	return c.BackupS3Bucket != "" || c.ReportSSMParam != ""
}
