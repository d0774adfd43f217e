package lineage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/logging"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

const (
	manifestFile  = "manifest.json"
	lineageFile   = "lineage.json"
	evalConfFile  = "evaluator_config.json"
	indexFileName = "index.json"
)

// Snapshot is a fully loaded SPICA instance directory.
type Snapshot struct {
	Manifest        *Manifest
	Lineage         *Lineage
	EvaluatorConfig map[string]any
}

// indexEntry orders retained snapshots for eviction.
type indexEntry struct {
	SpicaID    string    `json:"spica_id"`
	Fitness    float64   `json:"fitness"`
	InsertedAt time.Time `json:"inserted_at"`
}

// Store persists SPICA snapshots under one directory per instance and
// enforces a fixed retention cap, evicting the lowest-fitness (oldest
// among ties) snapshots first.
type Store struct {
	dir       string
	retention int
	index     []indexEntry
}

// NewStore opens (or creates) a snapshot store rooted at dir. retention
// must be at least 1.
func NewStore(dir string, retention int) (*Store, error) {
	if retention < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"snapshot_retention_count must be >= 1, got %d", retention)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "cannot create snapshot directory")
	}
	s := &Store{dir: dir, retention: retention}
	if err := utils.ReadJSON(filepath.Join(dir, indexFileName), &s.index); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.IntegrityViolation, "snapshot index unreadable")
	}
	return s, nil
}

// Save writes a snapshot directory atomically and enforces retention.
// The candidate's fitness drives eviction order.
func (s *Store) Save(ctx context.Context, m *Manifest, l *Lineage, evalConfig map[string]any, fitness float64) error {
	if m.SpicaID != l.SpicaID {
		return errors.New(errors.InvalidInput, "manifest and lineage describe different instances")
	}
	dir := filepath.Join(s.dir, m.SpicaID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.Unknown, "cannot create instance directory")
	}
	if err := utils.AtomicWriteJSON(filepath.Join(dir, manifestFile), m); err != nil {
		return err
	}
	if err := utils.AtomicWriteJSON(filepath.Join(dir, lineageFile), l); err != nil {
		return err
	}
	if evalConfig != nil {
		if err := utils.AtomicWriteJSON(filepath.Join(dir, evalConfFile), evalConfig); err != nil {
			return err
		}
	}

	s.upsert(indexEntry{SpicaID: m.SpicaID, Fitness: fitness, InsertedAt: time.Now().UTC()})
	if err := s.enforceRetention(ctx); err != nil {
		return err
	}
	return s.writeIndex()
}

// Load reads one snapshot back and verifies both hashes. A mismatch is
// fatal for this snapshot only; callers keep the run alive.
func (s *Store) Load(spicaID string) (*Snapshot, error) {
	dir := filepath.Join(s.dir, spicaID)

	var m Manifest
	if err := utils.ReadJSON(filepath.Join(dir, manifestFile), &m); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ResourceNotFound, "no snapshot for %s", spicaID)
		}
		return nil, errors.Wrap(err, errors.IntegrityViolation, "manifest unreadable")
	}
	if err := m.Verify(); err != nil {
		return nil, err
	}

	var l Lineage
	if err := utils.ReadJSON(filepath.Join(dir, lineageFile), &l); err != nil {
		return nil, errors.Wrap(err, errors.IntegrityViolation, "lineage unreadable")
	}
	if err := l.Verify(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Manifest: &m, Lineage: &l}
	var conf map[string]any
	if err := utils.ReadJSON(filepath.Join(dir, evalConfFile), &conf); err == nil {
		snap.EvaluatorConfig = conf
	}
	return snap, nil
}

// List returns retained spica ids ordered best-fitness first.
func (s *Store) List() []string {
	sorted := make([]indexEntry, len(s.index))
	copy(sorted, s.index)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Fitness != sorted[j].Fitness {
			return sorted[i].Fitness > sorted[j].Fitness
		}
		return sorted[i].InsertedAt.After(sorted[j].InsertedAt)
	})
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.SpicaID
	}
	return ids
}

// Len reports how many snapshots the index currently tracks.
func (s *Store) Len() int { return len(s.index) }

func (s *Store) upsert(e indexEntry) {
	for i := range s.index {
		if s.index[i].SpicaID == e.SpicaID {
			s.index[i] = e
			return
		}
	}
	s.index = append(s.index, e)
}

func (s *Store) enforceRetention(ctx context.Context) error {
	logger := logging.GetLogger()
	for len(s.index) > s.retention {
		victim := 0
		for i := 1; i < len(s.index); i++ {
			if s.index[i].Fitness < s.index[victim].Fitness ||
				(s.index[i].Fitness == s.index[victim].Fitness &&
					s.index[i].InsertedAt.Before(s.index[victim].InsertedAt)) {
				victim = i
			}
		}
		evicted := s.index[victim]
		if err := os.RemoveAll(filepath.Join(s.dir, evicted.SpicaID)); err != nil {
			return errors.Wrap(err, errors.Unknown, "cannot evict snapshot")
		}
		s.index = append(s.index[:victim], s.index[victim+1:]...)
		logger.Debug(ctx, "evicted snapshot %s (fitness %.4f) under retention cap %d",
			evicted.SpicaID, evicted.Fitness, s.retention)
	}
	return nil
}

func (s *Store) writeIndex() error {
	return utils.AtomicWriteJSON(filepath.Join(s.dir, indexFileName), s.index)
}
