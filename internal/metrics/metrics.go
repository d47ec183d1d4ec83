package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector exported on /metrics.
//
// Labels stay low-cardinality. The single exception is
// IngestRateLimitedByRider, a diagnostic counter keyed by rider id.
// Do not add per-rider, per-order or per-incident labels anywhere else.
type Metrics struct {
	// Ingestion funnel
	IngestReceived           prometheus.Counter
	IngestAccepted           prometheus.Counter
	IngestDeduped            prometheus.Counter
	IngestRateLimited        prometheus.Counter
	IngestRateLimitedByRider *prometheus.CounterVec
	IngestRejected           *prometheus.CounterVec
	IngestPublishFailed      prometheus.Counter
	IngestStoreFailed        prometheus.Counter

	// Projections
	ProjectionsRead    prometheus.Counter
	ProjectionsDropped *prometheus.CounterVec
	Freshness          *prometheus.GaugeVec

	// Kill switch
	KillSwitchState       prometheus.Gauge
	KillSwitchTransitions *prometheus.CounterVec

	// Stream health, mirrored from the enrichment worker
	EventTimeLag      prometheus.Gauge
	ProcessingTimeLag prometheus.Gauge

	// Incidents
	IncidentsDetected      *prometheus.CounterVec
	IncidentsCreated       *prometheus.CounterVec
	IncidentsAcked         prometheus.Counter
	IncidentsClosed        *prometheus.CounterVec
	IncidentsFalsePositive prometheus.Counter
	IncidentMTTR           *prometheus.GaugeVec
	DetectionRuns          prometheus.Counter

	// Escalation
	EscalationsEmitted  *prometheus.CounterVec
	EscalationPages     *prometheus.CounterVec
	EscalationDecisions *prometheus.CounterVec
	EscalationRuns      prometheus.Counter

	// Offline loops
	SLOSnapshots     prometheus.Counter
	LearningRuns     prometheus.Counter
	LearningInsights *prometheus.CounterVec
}

// New registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		IngestReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_received_total",
			Help: "Location samples received by the ingestion gate",
		}),
		IngestAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_accepted_total",
			Help: "Location samples published to the event stream",
		}),
		IngestDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_deduped_total",
			Help: "Location samples dropped because seq was not newer than the last accepted one",
		}),
		IngestRateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_rate_limited_total",
			Help: "Location samples rejected by the per-rider rate limit",
		}),
		IngestRateLimitedByRider: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_ingest_rate_limited_by_rider_total",
			Help: "Diagnostic only: rate-limited samples per rider (high cardinality)",
		}, []string{"rider_id"}),
		IngestRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_ingest_rejected_total",
			Help: "Location samples rejected, by reason",
		}, []string{"reason"}),
		IngestPublishFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_publish_failed_total",
			Help: "Location samples that failed to publish to the event stream",
		}),
		IngestStoreFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_ingest_store_failed_total",
			Help: "Location samples that failed on a hot-store read or write",
		}),

		ProjectionsRead: f.NewCounter(prometheus.CounterOpts{
			Name: "tracking_projection_reads_total",
			Help: "Projection records decoded successfully",
		}),
		ProjectionsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_projection_dropped_total",
			Help: "Projection records treated as absent, by reason",
		}, []string{"reason"}),
		Freshness: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracking_freshness_projections",
			Help: "Active projections by freshness state at the last aggregation",
		}, []string{"state"}),

		KillSwitchState: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_killswitch_state",
			Help: "Kill switch mode: 0=OFF 1=INGEST_ONLY 2=CUSTOMER_READ_ENABLED",
		}),
		KillSwitchTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tracking_killswitch_transitions_total",
			Help: "Kill switch transitions, by target mode",
		}, []string{"mode"}),

		EventTimeLag: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_stream_event_time_lag_seconds",
			Help: "Event-time lag reported by the enrichment worker",
		}),
		ProcessingTimeLag: f.NewGauge(prometheus.GaugeOpts{
			Name: "tracking_stream_processing_time_lag_seconds",
			Help: "Processing-time lag reported by the enrichment worker",
		}),

		IncidentsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_detected_total",
			Help: "Rule hits produced by detection runs",
		}, []string{"type", "severity"}),
		IncidentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "New incident records",
		}, []string{"type"}),
		IncidentsAcked: f.NewCounter(prometheus.CounterOpts{
			Name: "incidents_acked_total",
			Help: "Incidents moved to ACKED",
		}),
		IncidentsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_closed_total",
			Help: "Incidents moved to CLOSED",
		}, []string{"type"}),
		IncidentsFalsePositive: f.NewCounter(prometheus.CounterOpts{
			Name: "incidents_false_positive_total",
			Help: "Incidents closed with a false_positive reason",
		}),
		IncidentMTTR: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "incident_mttr_seconds",
			Help: "closedAt - detectedAt of the most recently closed incident, by type",
		}, []string{"type"}),
		DetectionRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "incident_detection_runs_total",
			Help: "Detection ticks executed",
		}),

		EscalationsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_emitted_total",
			Help: "Escalation steps emitted",
		}, []string{"severity", "step"}),
		EscalationPages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_pages_total",
			Help: "Escalations routed to a concrete on-call person",
		}, []string{"severity", "step"}),
		EscalationDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_decisions_total",
			Help: "Escalation decisions, by action",
		}, []string{"action"}),
		EscalationRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "escalation_runs_total",
			Help: "Escalation ticks executed",
		}),

		SLOSnapshots: f.NewCounter(prometheus.CounterOpts{
			Name: "slo_snapshots_total",
			Help: "Hourly SLO snapshots written",
		}),
		LearningRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "learning_runs_total",
			Help: "Offline learning runs executed",
		}),
		LearningInsights: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learning_insights_stored_total",
			Help: "New learning insights stored, by domain",
		}, []string{"domain"}),
	}
}

// NewTest returns metrics on a private registry
func NewTest() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return New(reg), reg
}
