package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the form workflow.
type Metrics struct {
	FieldSaves        *prometheus.CounterVec
	FieldSaveFailures *prometheus.CounterVec
	FormSubmits       *prometheus.CounterVec
	DocumentUploads   prometheus.Counter
	DocumentConflicts prometheus.Counter
	LockedRejections  prometheus.Counter
	RequestLatency    *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		FieldSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prequal_field_saves_total",
			Help: "Per-field autosave persistence calls, by form number.",
		}, []string{"form"}),
		FieldSaveFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prequal_field_save_failures_total",
			Help: "Failed per-field autosave persistence calls, by form number.",
		}, []string{"form"}),
		FormSubmits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prequal_form_submits_total",
			Help: "Form submit attempts, by form number and outcome.",
		}, []string{"form", "outcome"}),
		DocumentUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prequal_document_uploads_total",
			Help: "Documents bound to records.",
		}),
		DocumentConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prequal_document_conflicts_total",
			Help: "Rejected duplicate singleton document uploads.",
		}),
		LockedRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "prequal_locked_rejections_total",
			Help: "Mutations rejected because the owning form was locked.",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prequal_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
