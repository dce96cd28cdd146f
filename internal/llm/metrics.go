package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloom_service_requests_total",
		Help: "Generation service requests by provider, model and outcome.",
	}, []string{"provider", "model", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyloom_service_request_duration_seconds",
		Help:    "Wall-clock duration of generation service requests.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"provider", "model"})

	promptTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyloom_service_prompt_tokens",
		Help:    "Prompt token counts per request (reported or estimated).",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	}, []string{"provider", "model"})

	completionTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyloom_service_completion_tokens",
		Help:    "Completion token counts per request (reported or estimated).",
		Buckets: prometheus.ExponentialBuckets(64, 2, 12),
	}, []string{"provider", "model"})
)

func observeRequest(provider, model, status string, seconds float64) {
	requestsTotal.WithLabelValues(provider, model, status).Inc()
	if status == "ok" {
		requestDuration.WithLabelValues(provider, model).Observe(seconds)
	}
}

func observeTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		promptTokens.WithLabelValues(provider, model).Observe(float64(prompt))
	}
	if completion > 0 {
		completionTokens.WithLabelValues(provider, model).Observe(float64(completion))
	}
}
