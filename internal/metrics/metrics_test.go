package metrics

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

const problem = "2 + 3 = 5"

func TestObserveEpisode(t *testing.T) {
	m := NewTraining()

	m.ObserveEpisode(trainer.EpisodeStats{Problem: problem, Episode: 1, TotalReward: 4, Steps: 8, Epsilon: 0.1, Improved: true, Reached: true})
	m.ObserveEpisode(trainer.EpisodeStats{Problem: problem, Episode: 2, TotalReward: -4, Steps: 10, Epsilon: 0.1})
	m.ObserveEpisode(trainer.EpisodeStats{Problem: problem, Episode: 3, TotalReward: 10, Steps: 6, Epsilon: 0.0995, Improved: true, Reached: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EpisodesTotal.WithLabelValues(problem, "solved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EpisodesTotal.WithLabelValues(problem, "unsolved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImprovementsTotal.WithLabelValues(problem)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BestReward.WithLabelValues(problem)))
	assert.Equal(t, 0.0995, testutil.ToFloat64(m.Epsilon.WithLabelValues(problem)))
	assert.Equal(t, 10.0, m.Best(problem))
	assert.Equal(t, 2, testutil.CollectAndCount(m.EpisodesTotal))
}

func TestBest_Unknown(t *testing.T) {
	m := NewTraining()
	assert.True(t, math.IsInf(m.Best("nope"), -1))
}

func TestRegistriesAreIsolated(t *testing.T) {
	a, b := NewTraining(), NewTraining()
	a.ObserveEpisode(trainer.EpisodeStats{Problem: problem, TotalReward: 1})
	assert.Equal(t, 0, testutil.CollectAndCount(b.EpisodesTotal))
}

func TestObserveEpisode_Concurrent(t *testing.T) {
	m := NewTraining()
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range 50 {
				m.ObserveEpisode(trainer.EpisodeStats{Problem: problem, Episode: ep, TotalReward: float64(w*100 + ep)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200.0, testutil.ToFloat64(m.EpisodesTotal.WithLabelValues(problem, "unsolved")))
	assert.Equal(t, 349.0, m.Best(problem))
}

func TestWriteTextfile(t *testing.T) {
	m := NewTraining()
	m.ObserveEpisode(trainer.EpisodeStats{Problem: problem, TotalReward: 10, Steps: 6, Reached: true})

	path := filepath.Join(t.TempDir(), "train.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "mathrl_training_episodes_total"), text)
	assert.Contains(t, text, "mathrl_training_best_reward")
}

func TestTrainerIntegration(t *testing.T) {
	e, err := env.New(env.VariantRecursive, "2 + 3", 5)
	require.NoError(t, err)
	m := NewTraining()
	tr := trainer.New(e, agent.New(agent.DefaultConfig(), trainer.NewRand(5)),
		trainer.Config{NumEpisodes: 40, MaxSteps: 20, DecayEvery: 10, DecayRate: 0.9}, nil, m)
	summary := tr.Train()

	solved := testutil.ToFloat64(m.EpisodesTotal.WithLabelValues(problem, "solved"))
	unsolved := testutil.ToFloat64(m.EpisodesTotal.WithLabelValues(problem, "unsolved"))
	assert.Equal(t, 40.0, solved+unsolved)
	assert.Equal(t, summary.BestReward, m.Best(problem))
	assert.Equal(t, summary.BestReward, testutil.ToFloat64(m.BestReward.WithLabelValues(problem)))
}
