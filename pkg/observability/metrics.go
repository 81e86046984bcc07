package observability

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
type Metrics struct {
	Passes           *prometheus.CounterVec
	PassDuration     prometheus.Histogram
	Dispatched       prometheus.Histogram
	EvaluationErrors *prometheus.CounterVec
	ComponentLoads   *prometheus.CounterVec
	ComponentLatency prometheus.Histogram
	Navigations      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_render_passes_total",
			Help: "Render passes by result",
		}, []string{"result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_render_pass_duration_seconds",
			Help:    "Time from context merge to quiescence",
			Buckets: prometheus.DefBuckets,
		}),
		Dispatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_render_pass_evaluations",
			Help:    "Asynchronous evaluations dispatched per pass",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		EvaluationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_evaluation_errors_total",
			Help: "Directive evaluations that failed",
		}, []string{"binding"}),
		ComponentLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_component_loads_total",
			Help: "Component loads by cache use and result",
		}, []string{"cached", "result"}),
		ComponentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbor_component_load_duration_seconds",
			Help:    "Time to retrieve, instantiate and ready a component",
			Buckets: prometheus.DefBuckets,
		}),
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_navigations_total",
			Help: "Router transitions by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.Passes, m.PassDuration, m.Dispatched, m.EvaluationErrors,
		m.ComponentLoads, m.ComponentLatency, m.Navigations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassComplete: func(_ context.Context, e *domain.PassEvent) {
			m.Passes.WithLabelValues(result(e.Err)).Inc()
			m.PassDuration.Observe(e.Duration.Seconds())
			m.Dispatched.Observe(float64(e.Dispatched))
		},
		OnEvaluationError: func(_ context.Context, e *domain.EvaluationEvent) {
			m.EvaluationErrors.WithLabelValues(e.Binding).Inc()
		},
		OnComponentLoad: func(_ context.Context, e *domain.ComponentEvent) {
			m.ComponentLoads.WithLabelValues(strconv.FormatBool(e.Cached), result(e.Err)).Inc()
			m.ComponentLatency.Observe(e.Duration.Seconds())
		},
		OnNavigate: func(_ context.Context, e *domain.NavigationEvent) {
			outcome := string(e.Outcome)
			if e.Err != nil {
				outcome = "error"
			}
			m.Navigations.WithLabelValues(outcome).Inc()
		},
	}
}

// LogHooks returns lifecycle hooks writing every event to logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassStart: func(ctx context.Context, e *domain.PassEvent) {
			logger.DebugContext(ctx, "pass_start", "keys", e.Keys)
		},
		OnPassComplete: func(ctx context.Context, e *domain.PassEvent) {
			logger.DebugContext(ctx, "pass_complete",
				"dispatched", e.Dispatched, "duration", e.Duration, "err", e.Err)
		},
		OnEvaluationError: func(ctx context.Context, e *domain.EvaluationEvent) {
			logger.DebugContext(ctx, "evaluation_error", "binding", e.Binding, "expr", e.Expr, "err", e.Err)
		},
		OnComponentLoad: func(ctx context.Context, e *domain.ComponentEvent) {
			logger.InfoContext(ctx, "component_load",
				"locator", e.Locator, "cached", e.Cached, "scripts", e.Scripts,
				"failures", e.Failures, "duration", e.Duration, "err", e.Err)
		},
		OnNavigate: func(ctx context.Context, e *domain.NavigationEvent) {
			logger.InfoContext(ctx, "navigate",
				"from", e.From, "to", e.To, "outcome", e.Outcome, "duration", e.Duration, "err", e.Err)
		},
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
