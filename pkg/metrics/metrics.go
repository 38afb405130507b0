// Package metrics exports the outcome of the last sync run as a Prometheus
// textfile, for node_exporter's textfile collector.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sdejongh/contentsync/pkg/models"
)

const namespace = "contentsync"

// Recorder writes one textfile per run, replacing the previous one
type Recorder struct {
	path     string
	registry *prometheus.Registry

	lastRun   *prometheus.GaugeVec
	duration  *prometheus.GaugeVec
	status    *prometheus.GaugeVec
	records   *prometheus.GaugeVec
	writes    *prometheus.GaugeVec
	reachable *prometheus.GaugeVec
}

// NewRecorder creates a recorder writing to path
func NewRecorder(path string) *Recorder {
	r := &Recorder{
		path:     path,
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sync run finished.",
		}, []string{"mode"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last sync run.",
		}, []string{"mode"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_status",
			Help:      "1 for the status of the last sync run, 0 for the others.",
		}, []string{"mode", "status"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records fetched per store in the last run.",
		}, []string{"store"}),
		writes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_writes",
			Help:      "Write operations of the last run per target store, operation and outcome.",
		}, []string{"target", "op", "outcome"}),
		reachable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_reachable",
			Help:      "1 if the store was reachable during the last run.",
		}, []string{"store"}),
	}
	r.registry.MustRegister(r.lastRun, r.duration, r.status, r.records, r.writes, r.reachable)
	return r
}

// Observe loads report into the gauges
func (r *Recorder) Observe(report *models.SyncReport) {
	r.status.Reset()
	r.writes.Reset()

	mode := string(report.Mode)
	r.lastRun.WithLabelValues(mode).Set(float64(report.EndTime.Unix()))
	r.duration.WithLabelValues(mode).Set(report.Duration.Seconds())
	for _, s := range []models.SyncStatus{models.StatusSuccess, models.StatusPartial, models.StatusFailed, models.StatusCancelled} {
		v := 0.0
		if report.Status == s {
			v = 1
		}
		r.status.WithLabelValues(mode, string(s)).Set(v)
	}

	r.records.WithLabelValues(string(models.StoreA)).Set(float64(report.Stats.FetchedA))
	r.records.WithLabelValues(string(models.StoreB)).Set(float64(report.Stats.FetchedB))
	for _, store := range []models.StoreID{models.StoreA, models.StoreB} {
		v := 1.0
		if report.IsUnreachable(store) {
			v = 0
		}
		r.reachable.WithLabelValues(string(store)).Set(v)
	}

	for _, res := range report.Results {
		r.writes.WithLabelValues(string(res.Target), string(res.Op), string(res.Outcome)).Inc()
	}
}

// ObserveRun records report and rewrites the textfile
func (r *Recorder) ObserveRun(_ context.Context, report *models.SyncReport) error {
	r.Observe(report)

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
