package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estatedesk_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"route", "method"},
	)

	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_chat_turns_total",
			Help: "Total chat turns processed",
		},
		[]string{"outcome"},
	)

	GateTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estatedesk_gate_transitions_total",
			Help: "Total sessions transitioned to the gated state",
		},
	)

	LeadsCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_leads_captured_total",
			Help: "Total leads captured",
		},
		[]string{"source"},
	)

	IngestionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_ingestion_total",
			Help: "Ingestion outcomes by extraction variant",
		},
		[]string{"variant"},
	)

	RelayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_relay_requests_total",
			Help: "Total relay fetches",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatedesk_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	StageRenameLeads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estatedesk_stage_rename_leads_total",
			Help: "Total lead rows migrated by stage renames",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ChatTurnsTotal)
	prometheus.MustRegister(GateTransitionsTotal)
	prometheus.MustRegister(LeadsCapturedTotal)
	prometheus.MustRegister(IngestionTotal)
	prometheus.MustRegister(RelayRequestsTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(StageRenameLeads)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware observes the duration of every request under the matched
// route pattern, so path parameters do not explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		RequestDuration.WithLabelValues(c.Route().Path, c.Method()).Observe(time.Since(start).Seconds())
		return err
	}
}
