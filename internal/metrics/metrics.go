package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/keithlinneman/htmlsplice/internal/version"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomePatched        = "patched"
	OutcomeDryRun         = "dry_run"
	OutcomeMarkersMissing = "markers_missing"
	OutcomeError          = "error"
)

// RunMetrics collects the metrics of a single invocation. The tool exits
// right after patching, so nothing scrapes it; WriteTextfile hands the
// registry to node_exporter's textfile collector instead.
type RunMetrics struct {
	reg *prometheus.Registry

	buildInfo          *prometheus.GaugeVec
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	documentBytes      *prometheus.GaugeVec
	lastSuccessTs      prometheus.Gauge
	lastRunTs          prometheus.Gauge
	remoteErrorsTotal  *prometheus.CounterVec
	documentInfo       *prometheus.GaugeVec
	markerOffsets      *prometheus.GaugeVec
	replacementBytes   prometheus.Gauge
	outOfOrderMarkers  prometheus.Counter
	backupVerifyFailed prometheus.Counter
}

func New() *RunMetrics {
	m := &RunMetrics{
		reg: prometheus.NewRegistry(),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htmlsplice_runs_total",
			Help: "Splice runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "htmlsplice_run_duration_seconds",
			Help:    "Time to load, splice, back up and write the document",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		documentBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htmlsplice_document_bytes",
			Help: "Document size before and after splicing",
		}, []string{"stage"}),
		lastSuccessTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "htmlsplice_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last run that modified the document",
		}),
		lastRunTs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "htmlsplice_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last run regardless of outcome",
		}),
		remoteErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htmlsplice_remote_errors_total",
			Help: "Failed best-effort remote operations by target (s3, ssm)",
		}, []string{"target"}),
		documentInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htmlsplice_document_info",
			Help: "Document identity by stage (label carries sha256, value is always 1)",
		}, []string{"stage", "sha256"}),
		markerOffsets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htmlsplice_marker_offset_bytes",
			Help: "Byte offset of each marker in the original document",
		}, []string{"marker"}),
		replacementBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "htmlsplice_replacement_bytes",
			Help: "Size of the replacement block",
		}),
		outOfOrderMarkers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "htmlsplice_out_of_order_markers_total",
			Help: "Runs where the end marker preceded the start marker",
		}),
		backupVerifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "htmlsplice_backup_verify_failures_total",
			Help: "Backups whose read-back hash did not match the original",
		}),
	}
	m.reg.MustRegister(
		m.buildInfo,
		m.runsTotal,
		m.runDuration,
		m.documentBytes,
		m.lastSuccessTs,
		m.lastRunTs,
		m.remoteErrorsTotal,
		m.documentInfo,
		m.markerOffsets,
		m.replacementBytes,
		m.outOfOrderMarkers,
		m.backupVerifyFailed,
	)
	return m
}

// Gatherer exposes the registry for tests and alternate exporters.
func (m *RunMetrics) Gatherer() prometheus.Gatherer { return m.reg }

// WriteTextfile writes every metric to path in the text exposition format.
// prometheus.WriteToTextfile writes a temp file and renames it, so
// node_exporter never reads a partial file.
func (m *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

// set once at startup.
func (m *RunMetrics) SetBuildInfoFromVersion(app string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *RunMetrics) ObserveRun(outcome string, d time.Duration) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
	now := float64(time.Now().Unix())
	m.lastRunTs.Set(now)
	if outcome == OutcomePatched {
		m.lastSuccessTs.Set(now)
	}
}

func (m *RunMetrics) SetDocument(stage, sha256 string, size int) {
	m.documentBytes.WithLabelValues(stage).Set(float64(size))
	m.documentInfo.DeletePartialMatch(prometheus.Labels{"stage": stage})
	m.documentInfo.WithLabelValues(stage, sha256).Set(1)
}

func (m *RunMetrics) SetMarkerOffsets(start, end int) {
	m.markerOffsets.WithLabelValues("start").Set(float64(start))
	m.markerOffsets.WithLabelValues("end").Set(float64(end))
}

func (m *RunMetrics) SetReplacementBytes(n int) {
	m.replacementBytes.Set(float64(n))
}

func (m *RunMetrics) IncOutOfOrderMarkers() {
	m.outOfOrderMarkers.Inc()
}

func (m *RunMetrics) IncBackupVerifyFailed() {
	m.backupVerifyFailed.Inc()
}

func (m *RunMetrics) IncRemoteError(target string) {
	m.remoteErrorsTotal.WithLabelValues(target).Inc()
}
