package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_research_fetches_in_flight",
			Help: "Number of page fetches currently running",
		},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_research_fetches_total",
			Help: "Total number of page fetches by outcome",
		},
		[]string{"outcome"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_research_searches_total",
			Help: "Total number of provider search calls",
		},
		[]string{"provider", "outcome"},
	)

	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_research_llm_calls_total",
			Help: "Total number of language model calls by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_research_units_total",
			Help: "Total number of fan-out units by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_research_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"pipeline", "stage"},
	)

	JobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_research_jobs_active",
			Help: "Number of research jobs currently running",
		},
		[]string{"kind"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeCached  = "cached"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
