package patch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/htmlsplice/internal/cryptoutil"
	"github.com/keithlinneman/htmlsplice/internal/document"
	"github.com/keithlinneman/htmlsplice/internal/log"
	"github.com/keithlinneman/htmlsplice/internal/metrics"
	"github.com/keithlinneman/htmlsplice/internal/otelx"
	"github.com/keithlinneman/htmlsplice/internal/splice"
	"github.com/keithlinneman/htmlsplice/internal/xerrors"
)

// ErrBackupMismatch is returned when the backup read back from disk does not
// hash to the original document. The target is left untouched.
var ErrBackupMismatch = errors.New("backup does not match original document")

// State of the target file after Apply.
type State int

const (
	Unmodified State = iota
	Modified
)

func (s State) String() string {
	switch s {
	case Unmodified:
		return "unmodified"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Job names the file to patch and what to put in it.
type Job struct {
	Path        string
	BackupPath  string
	Markers     splice.Markers
	Replacement string
}

// Result describes a finished Apply. On error it carries whatever was known
// when the run stopped.
type Result struct {
	State          State
	Path           string
	BackupPath     string
	BackupURI      string
	Span           splice.Span
	OriginalSHA256 string
	PatchedSHA256  string
	OriginalBytes  int
	PatchedBytes   int
	Duration       time.Duration
}

// Metrics is the subset of metrics.RunMetrics the patcher reports to.
type Metrics interface {
	ObserveRun(outcome string, d time.Duration)
	SetDocument(stage, sha256 string, size int)
	SetMarkerOffsets(start, end int)
	SetReplacementBytes(n int)
	IncOutOfOrderMarkers()
	IncBackupVerifyFailed()
	IncRemoteError(target string)
}

// BackupMirror copies the backup off the host.
type BackupMirror interface {
	Mirror(ctx context.Context, backupPath, sha256 string, data []byte) (string, error)
}

// HashReporter records the hash of the patched document.
type HashReporter interface {
	Report(ctx context.Context, sha256 string) (int64, error)
}

type Options struct {
	Logger  log.Logger
	Metrics Metrics
	// RunID tags the span so a trace can be matched to the run's log lines
	RunID string
	// optional
	Mirror   BackupMirror
	Reporter HashReporter
	DryRun   bool
}

type Patcher struct {
	opts   Options
	logger log.Logger
	tracer trace.Tracer
}

func New(opts Options) *Patcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Patcher{
		opts:   opts,
		logger: opts.Logger.With("component", "patch"),
		tracer: otelx.Tracer(),
	}
}

// Apply splices job.Replacement between the markers of the document at
// job.Path. Either both the backup and the patched file are written, or
// nothing is: every check (markers, encoding, cancellation) runs before the
// first write.
func (p *Patcher) Apply(ctx context.Context, job Job) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "patch.apply", trace.WithAttributes(
		attribute.String("patch.path", job.Path),
		attribute.String("patch.run_id", p.opts.RunID),
		attribute.Bool("patch.dry_run", p.opts.DryRun),
	))
	defer span.End()

	start := time.Now()
	res, err := p.apply(ctx, job)
	res.Duration = time.Since(start)

	outcome := outcomeOf(res, err, p.opts.DryRun)
	p.opts.Metrics.ObserveRun(outcome, res.Duration)
	span.SetAttributes(
		attribute.String("patch.outcome", outcome),
		attribute.String("patch.state", res.State.String()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Patcher) apply(ctx context.Context, job Job) (*Result, error) {
	res := &Result{State: Unmodified, Path: job.Path, BackupPath: job.BackupPath}
	if job.Path == "" || job.BackupPath == "" {
		return res, xerrors.New("job requires both Path and BackupPath")
	}
	if job.Path == job.BackupPath {
		return res, xerrors.Newf("backup path must differ from target %s", job.Path)
	}

	p.logger.Info(ctx, "Fixing insights menu cards in", "path", job.Path)

	doc, err := document.Load(job.Path)
	if err != nil {
		return res, err
	}
	res.OriginalSHA256 = doc.SHA256
	res.OriginalBytes = doc.Size()
	p.opts.Metrics.SetDocument("original", doc.SHA256, doc.Size())
	p.opts.Metrics.SetReplacementBytes(len(job.Replacement))

	sp, err := splice.Locate(doc.Text, job.Markers)
	res.Span = sp
	if err != nil {
		return res, err
	}
	p.opts.Metrics.SetMarkerOffsets(sp.Start, sp.End)
	if !sp.Ordered() {
		p.opts.Metrics.IncOutOfOrderMarkers()
		p.logger.Warn(ctx, "end marker precedes start marker, text between them will be duplicated",
			"start_index", sp.Start,
			"end_index", sp.End,
		)
	}

	patched := splice.Apply(doc.Text, sp, job.Replacement)
	res.PatchedSHA256 = cryptoutil.SHA256Hex([]byte(patched))
	res.PatchedBytes = len(patched)

	if p.opts.DryRun {
		p.logger.Info(ctx, "dry run, no files written",
			"start_index", sp.Start,
			"end_index", sp.End,
			"original_bytes", res.OriginalBytes,
			"patched_bytes", res.PatchedBytes,
			"patched_sha256", res.PatchedSHA256,
		)
		return res, nil
	}

	// last point where aborting leaves the filesystem untouched
	if err := ctx.Err(); err != nil {
		return res, xerrors.Wrap(err, "aborted before writing")
	}

	original := []byte(doc.Text)
	if err := document.WriteFile(job.BackupPath, original, doc.Mode); err != nil {
		return res, xerrors.Wrap(err, "write backup")
	}
	if err := p.verifyBackup(job.BackupPath, doc.SHA256); err != nil {
		p.opts.Metrics.IncBackupVerifyFailed()
		return res, err
	}
	p.logger.Info(ctx, "Backup written to", "path", job.BackupPath, "sha256", doc.SHA256)

	if p.opts.Mirror != nil {
		uri, err := p.opts.Mirror.Mirror(ctx, job.BackupPath, doc.SHA256, original)
		if err != nil {
			p.opts.Metrics.IncRemoteError("s3")
			p.logger.Error(ctx, err, "backup mirror failed, continuing with local backup only")
		} else {
			res.BackupURI = uri
			p.logger.Info(ctx, "backup mirrored", "uri", uri)
		}
	}

	if err := document.WriteFile(job.Path, []byte(patched), doc.Mode); err != nil {
		return res, xerrors.Wrap(err, "write patched document")
	}
	res.State = Modified
	p.opts.Metrics.SetDocument("patched", res.PatchedSHA256, res.PatchedBytes)
	p.logger.Info(ctx, "index.html updated (insights menu cards replaced).",
		"path", job.Path,
		"original_bytes", res.OriginalBytes,
		"patched_bytes", res.PatchedBytes,
		"sha256", res.PatchedSHA256,
	)

	if p.opts.Reporter != nil {
		if v, err := p.opts.Reporter.Report(ctx, res.PatchedSHA256); err != nil {
			p.opts.Metrics.IncRemoteError("ssm")
			p.logger.Error(ctx, err, "failed to report patched hash")
		} else {
			p.logger.Info(ctx, "patched hash reported", "version", v)
		}
	}

	return res, nil
}

func (p *Patcher) verifyBackup(path, want string) error {
	got, _, err := cryptoutil.SHA256File(path)
	if err != nil {
		return xerrors.Wrapf(err, "read back backup %s", path)
	}
	if !cryptoutil.HashEqual(got, want) {
		return xerrors.Wrapf(ErrBackupMismatch, "backup %s: expected %s, got %s", path, want, got)
	}
	return nil
}

func outcomeOf(res *Result, err error, dryRun bool) string {
	switch {
	case errors.Is(err, splice.ErrMarkersNotFound):
		return metrics.OutcomeMarkersMissing
	case err != nil:
		return metrics.OutcomeError
	case res.State == Modified:
		return metrics.OutcomePatched
	case dryRun:
		return metrics.OutcomeDryRun
	default:
		return metrics.OutcomeError
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveRun(string, time.Duration) {}
func (nopMetrics) SetDocument(string, string, int)  {}
func (nopMetrics) SetMarkerOffsets(int, int)        {}
func (nopMetrics) SetReplacementBytes(int)          {}
func (nopMetrics) IncOutOfOrderMarkers()            {}
func (nopMetrics) IncBackupVerifyFailed()           {}
func (nopMetrics) IncRemoteError(string)            {}
