// Package lineage wraps evaluated candidates in durable, tamper-evident
// SPICA records. A manifest describes one instance and carries a content
// hash over its immutable fields; the hash is recomputed on every read so
// any later edit of a snapshot is detected as an integrity violation.
package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

// RootMarker is the parent id of generation-0 instances, which have no
// lineage above them.
const RootMarker = "root"

// Mutation records one genome parameter that differs from the parent.
type Mutation struct {
	Parameter string `json:"parameter"`
	From      any    `json:"from,omitempty"`
	To        any    `json:"to"`
}

// Manifest is the immutable descriptive record of a SPICA instance. Every
// field except Hash participates in the content hash.
type Manifest struct {
	SpicaID      string         `json:"spica_id"`
	Domain       string         `json:"domain"`
	Version      string         `json:"version"`
	OriginCommit string         `json:"origin_commit,omitempty"`
	ParentID     string         `json:"parent_id"`
	Generation   int            `json:"generation"`
	Mutations    []Mutation     `json:"mutations,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Config       map[string]any `json:"config,omitempty"`
	Hash         string         `json:"hash"`
}

// Lineage is the compact ancestry record kept alongside the manifest.
type Lineage struct {
	SpicaID          string   `json:"spica_id"`
	ParentID         string   `json:"parent_id"`
	Generation       int      `json:"generation"`
	MutationsApplied []string `json:"mutations_applied,omitempty"`
	Hash             string   `json:"hash"`
}

// Descriptor names the engine producing instances; it is stamped into
// every manifest.
type Descriptor struct {
	Domain       string
	Version      string
	OriginCommit string
}

// NewRecords builds the manifest/lineage pair for a candidate. Parentless
// candidates get the root marker; otherwise mutations are the genome diff
// against the given parent.
func NewRecords(desc Descriptor, c *core.Candidate, parent *core.Candidate, config map[string]any) (*Manifest, *Lineage) {
	parentID := RootMarker
	var mutations []Mutation
	if parent != nil {
		parentID = parent.ID
		mutations = DiffGenomes(parent.Genome, c.Genome)
	}
	config = canonicalize(config)

	m := &Manifest{
		SpicaID:      c.ID,
		Domain:       desc.Domain,
		Version:      desc.Version,
		OriginCommit: desc.OriginCommit,
		ParentID:     parentID,
		Generation:   c.Generation,
		Mutations:    mutations,
		CreatedAt:    c.CreatedAt.UTC(),
		Config:       config,
	}
	m.Hash = m.contentHash()

	l := &Lineage{
		SpicaID:    m.SpicaID,
		ParentID:   parentID,
		Generation: c.Generation,
	}
	for _, mut := range mutations {
		l.MutationsApplied = append(l.MutationsApplied, mut.Parameter)
	}
	l.Hash = l.contentHash()
	return m, l
}

// DiffGenomes lists the parameters whose values changed between parent
// and child, in the child's key-sorted order.
func DiffGenomes(parent, child core.Genome) []Mutation {
	raw := child.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Mutation
	for _, k := range keys {
		cv := child[k]
		pv, ok := parent[k]
		if ok && pv.Equal(cv) {
			continue
		}
		mut := Mutation{Parameter: k, To: cv.Raw()}
		if ok {
			mut.From = pv.Raw()
		}
		out = append(out, mut)
	}
	return out
}

// contentHash is the SHA-256 of the manifest's canonical JSON with the
// hash field cleared. json.Marshal emits struct fields in declaration
// order and map keys sorted, so the encoding is stable.
func (m *Manifest) contentHash() string {
	cp := *m
	cp.Hash = ""
	return hashJSON(cp)
}

func (l *Lineage) contentHash() string {
	cp := *l
	cp.Hash = ""
	return hashJSON(cp)
}

// canonicalize round-trips the config snapshot through JSON so the stored
// form, the in-memory form and the form decoded from disk all hash
// identically (nested structs flatten to key-sorted maps, numbers become
// float64).
func canonicalize(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		panic(fmt.Sprintf("lineage: unencodable config snapshot: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("lineage: config snapshot does not round-trip: %v", err))
	}
	return out
}

func hashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// All hashed types are plain JSON-encodable structs; reaching this
		// means a programming error upstream.
		panic(fmt.Sprintf("lineage: unencodable record: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the manifest's content hash and fails with an
// integrity violation when it no longer matches the stored one.
func (m *Manifest) Verify() error {
	if got := m.contentHash(); got != m.Hash {
		return errors.WithFields(
			errors.New(errors.IntegrityViolation, "manifest hash mismatch"),
			errors.Fields{"spica_id": m.SpicaID, "expected": m.Hash, "actual": got})
	}
	return nil
}

// Verify recomputes the lineage record's hash.
func (l *Lineage) Verify() error {
	if got := l.contentHash(); got != l.Hash {
		return errors.WithFields(
			errors.New(errors.IntegrityViolation, "lineage hash mismatch"),
			errors.Fields{"spica_id": l.SpicaID, "expected": l.Hash, "actual": got})
	}
	return nil
}
