package metrics

import (
	"fmt"
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

const (
	metricsNamespace  = "mathrl"
	trainingSubsystem = "training"
)

// #region training
// Training records per-episode training metrics on its own registry. It
// implements trainer.Observer and is safe for concurrent use by batch workers.
type Training struct {
	registry *prometheus.Registry

	EpisodesTotal     *prometheus.CounterVec
	EpisodeReward     *prometheus.HistogramVec
	EpisodeSteps      *prometheus.HistogramVec
	Epsilon           *prometheus.GaugeVec
	BestReward        *prometheus.GaugeVec
	ImprovementsTotal *prometheus.CounterVec

	mu   sync.Mutex
	best map[string]float64
}

// NewTraining registers the training metrics on a fresh registry.
func NewTraining() *Training {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Training{
		registry: reg,
		EpisodesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "episodes_total",
				Help:      "Training episodes by problem and outcome",
			},
			[]string{"problem", "outcome"},
		),
		EpisodeReward: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "episode_reward",
				Help:      "Total reward per episode",
				Buckets:   []float64{-20, -10, -5, 0, 2.5, 5, 7.5, 10, 15},
			},
			[]string{"problem"},
		),
		EpisodeSteps: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "episode_steps",
				Help:      "Environment steps per episode",
				Buckets:   []float64{1, 2, 4, 6, 8, 10, 15, 20},
			},
			[]string{"problem"},
		),
		Epsilon: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "epsilon",
				Help:      "Exploration rate of the latest episode",
			},
			[]string{"problem"},
		),
		BestReward: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "best_reward",
				Help:      "Best total reward seen so far",
			},
			[]string{"problem"},
		),
		ImprovementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trainingSubsystem,
				Name:      "improvements_total",
				Help:      "Episodes that produced a new best trajectory",
			},
			[]string{"problem"},
		),
		best: make(map[string]float64),
	}
}

// Registry exposes the registry for gathering or export.
func (m *Training) Registry() *prometheus.Registry {
	return m.registry
}

// #endregion training

// #region observe
// ObserveEpisode implements trainer.Observer.
func (m *Training) ObserveEpisode(stats trainer.EpisodeStats) {
	outcome := "unsolved"
	if stats.Reached {
		outcome = "solved"
	}
	m.EpisodesTotal.WithLabelValues(stats.Problem, outcome).Inc()
	m.EpisodeReward.WithLabelValues(stats.Problem).Observe(stats.TotalReward)
	m.EpisodeSteps.WithLabelValues(stats.Problem).Observe(float64(stats.Steps))
	m.Epsilon.WithLabelValues(stats.Problem).Set(stats.Epsilon)

	if stats.Improved {
		m.ImprovementsTotal.WithLabelValues(stats.Problem).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.best[stats.Problem]
	if !ok || stats.TotalReward > prev {
		m.best[stats.Problem] = stats.TotalReward
		m.BestReward.WithLabelValues(stats.Problem).Set(stats.TotalReward)
	}
}

// Best returns the best reward observed for problem, or -Inf.
func (m *Training) Best(problem string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.best[problem]; ok {
		return v
	}
	return math.Inf(-1)
}

// #endregion observe

// #region export
// WriteTextfile writes every metric in the Prometheus text format for a
// node-exporter textfile collector.
func (m *Training) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// #endregion export
