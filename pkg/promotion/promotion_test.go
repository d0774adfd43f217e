package promotion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

func championCandidate(t *testing.T, fitness float64) *core.Candidate {
	t.Helper()
	c, err := core.NewCandidate(0, core.Genome{
		"rate":  core.FloatValue(0.3),
		"model": core.StrValue("medium"),
	})
	require.NoError(t, err)
	c.Fitness = fitness
	c.Status = core.StatusEvaluated
	return c
}

func TestPromoteWritesReadableArtifact(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-1")
	require.NoError(t, err)

	champ := championCandidate(t, 0.88)
	path, err := w.Promote(context.Background(), &Artifact{
		Generation:     4,
		Champion:       champ,
		Elites:         []*core.Candidate{champ},
		PopulationSize: 20,
		Config:         map[string]any{"elite_k": 2.0},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "promotion-000004.json"), path)

	got, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 4, got.Generation)
	assert.Equal(t, 20, got.PopulationSize)
	assert.Equal(t, champ.ID, got.Champion.ID)
	assert.Equal(t, 0.88, got.Champion.Fitness)
	assert.True(t, champ.Genome.Equal(got.Champion.Genome))
	require.Len(t, got.Elites, 1)
	assert.False(t, got.PromotedAt.IsZero())
}

func TestLatestPicksNewestGeneration(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-1")
	require.NoError(t, err)

	for _, gen := range []int{1, 3, 12} {
		_, err := w.Promote(context.Background(), &Artifact{
			Generation: gen,
			Champion:   championCandidate(t, 0.5+float64(gen)/100),
		})
		require.NoError(t, err)
	}

	got, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Generation)
}

func TestLatestWithoutPromotions(t *testing.T) {
	_, err := Latest(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.Code(err))

	empty := t.TempDir()
	_, err = Latest(empty)
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.Code(err))
}

func TestInfeasibleChampionIsRejected(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-1")
	require.NoError(t, err)

	_, err = w.Promote(context.Background(), &Artifact{
		Generation: 0,
		Champion:   championCandidate(t, core.Infeasible),
	})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.Code(err))

	_, err = w.Promote(context.Background(), &Artifact{Generation: 0})
	require.Error(t, err)
}

func TestPromotionWriteFailureCode(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-1")
	require.NoError(t, err)

	// Replace the promotions directory with a file so both the write and
	// its retry fail.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o644))

	_, err = w.Promote(context.Background(), &Artifact{
		Generation: 1,
		Champion:   championCandidate(t, 0.9),
	})
	require.Error(t, err)
	assert.Equal(t, errors.PromotionWriteFailed, errors.Code(err))
}
