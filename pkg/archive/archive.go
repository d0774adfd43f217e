// Package archive implements the bounded diversity memory: deterministic
// genome embeddings, K-nearest-neighbor novelty scoring, and non-dominated
// capacity enforcement. Novelty keeps selection moving when the fitness
// signal goes flat.
package archive

import (
	"math"
	"sort"
	"time"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

// Entry is one archived candidate: its genome embedding plus the scores the
// eviction policy dominates on. Embeddings are a pure function of the
// genome, never of fitness.
type Entry struct {
	CandidateID string    `json:"candidate_id"`
	Embedding   []float64 `json:"embedding"`
	Fitness     float64   `json:"fitness"`
	Novelty     float64   `json:"novelty"`
	Seq         int64     `json:"seq"`
	InsertedAt  time.Time `json:"inserted_at"`
}

// Archive is a fixed-capacity diversity memory. It is owned by the
// generation loop; nothing mutates it concurrently.
type Archive struct {
	capacity int
	noveltyK int
	entries  []*Entry
	seq      int64
}

// New creates an archive with the given capacity and K for novelty scoring.
func New(capacity, noveltyK int) (*Archive, error) {
	if capacity < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration, "archive_capacity must be >= 1, got %d", capacity)
	}
	if noveltyK < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration, "novelty_k must be >= 1, got %d", noveltyK)
	}
	return &Archive{capacity: capacity, noveltyK: noveltyK}, nil
}

// Embed projects a genome onto a deterministic feature vector in dimension
// order. Continuous values normalize against the hard bounds; discrete and
// categorical values map to their position in the hard value set.
func Embed(space *core.SearchSpace, g core.Genome) []float64 {
	dims := space.Dimensions()
	emb := make([]float64, len(dims))
	for i, d := range dims {
		v, ok := g[d.Name]
		if !ok {
			continue
		}
		if d.Kind == core.KindContinuous {
			width := d.HardMax - d.HardMin
			if width > 0 {
				emb[i] = (v.Float - d.HardMin) / width
			}
			continue
		}
		if len(d.HardValues) < 2 {
			continue
		}
		for j, hv := range d.HardValues {
			if hv.Equal(v) {
				emb[i] = float64(j) / float64(len(d.HardValues)-1)
				break
			}
		}
	}
	return emb
}

func distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Novelty scores an embedding as the mean distance to its K nearest
// neighbors across the archive and the supplied generation peers. A point
// with no neighbors at all scores 0.
func (a *Archive) Novelty(embedding []float64, peers [][]float64) float64 {
	dists := make([]float64, 0, len(a.entries)+len(peers))
	for _, e := range a.entries {
		dists = append(dists, distance(embedding, e.Embedding))
	}
	for _, p := range peers {
		dists = append(dists, distance(embedding, p))
	}
	if len(dists) == 0 {
		return 0
	}
	sort.Float64s(dists)
	k := a.noveltyK
	if k > len(dists) {
		k = len(dists)
	}
	return utils.Mean(dists[:k])
}

// Update inserts candidate entries and enforces capacity with non-dominated
// (fitness, novelty) selection: the most-dominated entries are evicted
// first, oldest first among equals.
func (a *Archive) Update(entries []*Entry) {
	for _, e := range entries {
		e.Seq = a.seq
		a.seq++
		if e.InsertedAt.IsZero() {
			e.InsertedAt = time.Now()
		}
		a.entries = append(a.entries, e)
	}
	if len(a.entries) <= a.capacity {
		return
	}

	dominated := make([]int, len(a.entries))
	for i, ei := range a.entries {
		for j, ej := range a.entries {
			if i == j {
				continue
			}
			if dominates(ej, ei) {
				dominated[i]++
			}
		}
	}

	order := make([]int, len(a.entries))
	for i := range order {
		order[i] = i
	}
	// Keep the least-dominated, newest-first among ties.
	sort.SliceStable(order, func(x, y int) bool {
		ix, iy := order[x], order[y]
		if dominated[ix] != dominated[iy] {
			return dominated[ix] < dominated[iy]
		}
		return a.entries[ix].Seq > a.entries[iy].Seq
	})

	kept := make([]*Entry, 0, a.capacity)
	for _, idx := range order[:a.capacity] {
		kept = append(kept, a.entries[idx])
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Seq < kept[j].Seq })
	a.entries = kept
}

// dominates reports whether x is at least as good as y on both objectives
// and strictly better on one.
func dominates(x, y *Entry) bool {
	if x.Fitness < y.Fitness || x.Novelty < y.Novelty {
		return false
	}
	return x.Fitness > y.Fitness || x.Novelty > y.Novelty
}

// Len returns the number of archived entries.
func (a *Archive) Len() int { return len(a.entries) }

// Entries returns the archived entries in insertion order.
func (a *Archive) Entries() []*Entry {
	return append([]*Entry(nil), a.entries...)
}

// snapshot is the serialized archive state.
type snapshot struct {
	Capacity int      `json:"capacity"`
	NoveltyK int      `json:"novelty_k"`
	Seq      int64    `json:"seq"`
	Entries  []*Entry `json:"entries"`
}

// Save writes the archive state atomically to path.
func (a *Archive) Save(path string) error {
	return utils.AtomicWriteJSON(path, snapshot{
		Capacity: a.capacity,
		NoveltyK: a.noveltyK,
		Seq:      a.seq,
		Entries:  a.entries,
	})
}

// Load restores an archive from a snapshot file. Capacity and K come from
// the snapshot so a resumed run scores novelty identically.
func Load(path string) (*Archive, error) {
	var s snapshot
	if err := utils.ReadJSON(path, &s); err != nil {
		return nil, err
	}
	a, err := New(s.Capacity, s.NoveltyK)
	if err != nil {
		return nil, err
	}
	a.seq = s.Seq
	a.entries = s.Entries
	return a, nil
}
