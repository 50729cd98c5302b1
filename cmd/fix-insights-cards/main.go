package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"

	"github.com/keithlinneman/htmlsplice/internal/cfg"
	"github.com/keithlinneman/htmlsplice/internal/log"
	"github.com/keithlinneman/htmlsplice/internal/metrics"
	"github.com/keithlinneman/htmlsplice/internal/otelx"
	"github.com/keithlinneman/htmlsplice/internal/patch"
	"github.com/keithlinneman/htmlsplice/internal/pathutil"
	"github.com/keithlinneman/htmlsplice/internal/remote"
	"github.com/keithlinneman/htmlsplice/internal/splice"
	v "github.com/keithlinneman/htmlsplice/internal/version"
	"github.com/keithlinneman/htmlsplice/internal/webassets"
)

// swapped in tests
var (
	loadAWSConfig  = func(ctx context.Context) (aws.Config, error) { return config.LoadDefaultConfig(ctx) }
	executableRoot = pathutil.ExecutableRepoRoot
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	fs := flag.NewFlagSet(v.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.Register(fs, &conf)
	fs.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if showVersion {
		fmt.Fprintln(stdout, vi.String())
		return 0
	}

	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return 1
	}

	// Setup logging, levels were checked by Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSONFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
		Writer:            stdout,
	})
	if err != nil {
		fmt.Fprintln(stderr, "logger init error:", err)
		return 1
	}
	defer lg.Sync()
	runID := uuid.NewString()
	L := lg.With("component", "cli", "run_id", runID)
	ctx = log.WithContext(ctx, L)

	L.Debug(ctx, "starting",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"root", conf.Root,
		"target", conf.Target,
		"backup_suffix", conf.BackupSuffix,
		"dry_run", conf.DryRun,
		"enable_tracing", conf.EnableTracing,
		"metrics_textfile", conf.MetricsTextfile,
		"backup_s3_bucket", conf.BackupS3Bucket,
		"report_ssm_param", conf.ReportSSMParam,
	)

	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, continuing without tracing")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() {
		// spans are batched, give the exporter a bounded window to flush
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			L.Error(ctx, err, "otel shutdown")
		}
	}()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, vi)
	if conf.MetricsTextfile != "" {
		defer func() {
			if err := m.WriteTextfile(conf.MetricsTextfile); err != nil {
				L.Error(ctx, err, "failed to write metrics textfile", "path", conf.MetricsTextfile)
			}
		}()
	}

	root := conf.Root
	if root == "" {
		root, err = executableRoot()
		if err != nil {
			L.Error(ctx, err, "failed to resolve site root from executable path")
			return 1
		}
	}
	target := filepath.Join(root, conf.Target)

	opts := patch.Options{
		Logger:  L,
		Metrics: m,
		RunID:   runID,
		DryRun:  conf.DryRun,
	}
	if conf.RemoteEnabled() && !conf.DryRun {
		if err := wireRemotes(ctx, L, conf, &opts); err != nil {
			L.Error(ctx, err, "failed to set up AWS clients")
			return 1
		}
	}

	block := webassets.InsightsCards()
	res, err := patch.New(opts).Apply(ctx, patch.Job{
		Path:        target,
		BackupPath:  target + conf.BackupSuffix,
		Markers:     block.Markers,
		Replacement: block.Replacement,
	})
	switch {
	case errors.Is(err, splice.ErrMarkersNotFound):
		L.Error(ctx, err, "Could not find expected start/end markers. Aborting.", "path", target)
		return 1
	case err != nil:
		L.Error(ctx, err, "failed to patch document", "path", target)
		return 1
	}

	L.Debug(ctx, "done",
		"state", res.State.String(),
		"duration", res.Duration,
		"backup_uri", res.BackupURI,
	)
	return 0
}

// wireRemotes builds the S3 mirror and SSM reporter from the default AWS
// credential chain. Either may be unset.
func wireRemotes(ctx context.Context, L log.Logger, conf cfg.App, opts *patch.Options) error {
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	if conf.BackupS3Bucket != "" {
		mirror, err := remote.NewS3Mirror(remote.S3MirrorOptions{
			Logger: L,
			Client: s3.NewFromConfig(awsCfg),
			Bucket: conf.BackupS3Bucket,
			Prefix: conf.BackupS3Prefix,
		})
		if err != nil {
			return err
		}
		opts.Mirror = mirror
	}

	if conf.ReportSSMParam != "" {
		reporter, err := remote.NewSSMReporter(remote.SSMReporterOptions{
			Logger: L,
			Client: ssm.NewFromConfig(awsCfg),
			Param:  conf.ReportSSMParam,
		})
		if err != nil {
			return err
		}
		opts.Reporter = reporter
	}
	return nil
}
