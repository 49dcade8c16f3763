// Package metrics registers the Prometheus metrics the vault service records.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault engine.
type Metrics struct {
	VaultsCreated    prometheus.Counter
	FieldsWritten    prometheus.Counter
	FieldsDecrypted  prometheus.Counter
	CommitsTotal     *prometheus.CounterVec
	PrefillsApplied  prometheus.Counter
	DupeChecksTotal  prometheus.Counter
	BoundaryDuration prometheus.Histogram
}

// New creates and registers all metrics against the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VaultsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_vaults_created_total",
			Help: "Total number of vaults created.",
		}),
		FieldsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_fields_written_total",
			Help: "Total number of field values written.",
		}),
		FieldsDecrypted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_fields_decrypted_total",
			Help: "Total number of fields that crossed the decrypt boundary.",
		}),
		CommitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_commits_total",
			Help: "Identity data commits by outcome.",
		}, []string{"outcome"}),
		PrefillsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_prefills_applied_total",
			Help: "Total number of prefill applications.",
		}),
		DupeChecksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_dupe_checks_total",
			Help: "Total number of duplicate lookups served.",
		}),
		BoundaryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaultcore_boundary_call_duration_seconds",
			Help:    "Latency of decrypt/fingerprint boundary calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
