// Package promotion writes champion artifacts. Each improved generation
// produces one atomically written JSON file in a run-scoped promotions
// directory; external consumers poll that directory and must never see a
// partial file. The newest artifact, together with an archive snapshot,
// is sufficient to resume a run.
package promotion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/logging"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

// Artifact is one promotion record: the new champion plus everything a
// restarted run needs to rebuild its elite set and configuration.
type Artifact struct {
	RunID          string            `json:"run_id"`
	Generation     int               `json:"generation"`
	Champion       *core.Candidate   `json:"champion"`
	Elites         []*core.Candidate `json:"elites,omitempty"`
	PopulationSize int               `json:"population_size"`
	Config         map[string]any    `json:"config,omitempty"`
	PromotedAt     time.Time         `json:"promoted_at"`
}

// Writer persists promotion artifacts for one run.
type Writer struct {
	dir   string
	runID string
}

// NewWriter creates the run's promotions directory.
func NewWriter(dir, runID string) (*Writer, error) {
	if runID == "" {
		return nil, errors.New(errors.InvalidConfiguration, "promotion writer requires a run id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "cannot create promotions directory")
	}
	return &Writer{dir: dir, runID: runID}, nil
}

// Promote writes the artifact for generation gen. The write is atomic
// with respect to concurrent readers; on failure it is retried once and
// then surfaced as a promotion write failure, which costs this
// generation's promotion only.
func (w *Writer) Promote(ctx context.Context, a *Artifact) (string, error) {
	if a.Champion == nil || !a.Champion.Feasible() {
		return "", errors.New(errors.InvalidInput, "only feasible candidates can be promoted")
	}
	a.RunID = w.runID
	a.PromotedAt = time.Now().UTC()

	path := filepath.Join(w.dir, artifactName(a.Generation))
	err := utils.AtomicWriteJSON(path, a)
	if err != nil {
		logging.GetLogger().Warn(ctx, "promotion write failed, retrying once: %v", err)
		err = utils.AtomicWriteJSON(path, a)
	}
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.PromotionWriteFailed, "cannot write promotion artifact"),
			errors.Fields{"generation": a.Generation, "champion": a.Champion.ID})
	}

	logging.GetLogger().Info(ctx, "promoted candidate %s at generation %d (fitness %.4f)",
		a.Champion.ID, a.Generation, a.Champion.Fitness)
	return path, nil
}

// artifactName embeds the generation with fixed width so lexical order
// matches promotion order for directory-polling consumers.
func artifactName(generation int) string {
	return fmt.Sprintf("promotion-%06d.json", generation)
}

// Latest loads the newest promotion artifact under dir, or a not-found
// error when the run has never promoted.
func Latest(dir string) (*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ResourceNotFound, "no promotions directory")
		}
		return nil, errors.Wrap(err, errors.Unknown, "cannot list promotions")
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, errors.New(errors.ResourceNotFound, "no promotion artifacts")
	}
	sort.Strings(names)

	var a Artifact
	newest := filepath.Join(dir, names[len(names)-1])
	if err := utils.ReadJSON(newest, &a); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "cannot read promotion artifact")
	}
	return &a, nil
}
