// Package engine runs the evolutionary optimization loop. One Engine owns
// a run end to end: it generates populations, dispatches them to the
// evaluator, scores fitness and novelty, updates the archive, adapts the
// search space, and promotes champions. The loop is strictly sequential —
// generation N+1 starts only after N fully resolves — and it is the sole
// writer of the archive and champion state.
package engine

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/spica-go/pkg/archive"
	"github.com/XiaoConstantine/spica-go/pkg/config"
	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/dispatch"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/evolve"
	"github.com/XiaoConstantine/spica-go/pkg/fitness"
	"github.com/XiaoConstantine/spica-go/pkg/lineage"
	"github.com/XiaoConstantine/spica-go/pkg/logging"
	"github.com/XiaoConstantine/spica-go/pkg/promotion"
	"github.com/XiaoConstantine/spica-go/pkg/telemetry"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

// State names the loop's current phase.
type State string

const (
	StateInitializing State = "initializing"
	StateGenerating   State = "generating"
	StateDispatching  State = "dispatching"
	StateScoring      State = "scoring"
	StateSelecting    State = "selecting"
	StateAdapting     State = "adapting"
	StatePromoting    State = "promoting"
	StateAdvancing    State = "advancing"
	StateStopped      State = "stopped"
)

// Report summarizes a finished run.
type Report struct {
	RunID       string          `json:"run_id"`
	Generations int             `json:"generations"`
	Promotions  int             `json:"promotions"`
	Champion    *core.Candidate `json:"champion,omitempty"`
}

// Engine orchestrates one optimization run.
type Engine struct {
	cfg        *config.Config
	space      *core.SearchSpace
	rng        *rand.Rand
	evaluator  core.Evaluator
	calc       *fitness.Calculator
	arch       *archive.Archive
	generator  *evolve.Generator
	adapter    *evolve.SpaceAdapter
	dispatcher *dispatch.Dispatcher
	promoter   *promotion.Writer
	store      *lineage.Store
	tel        *telemetry.Writer
	desc       lineage.Descriptor

	runID      string
	state      State
	generation int
	promotions int
	champion   *core.Candidate
	prior      []*core.Candidate
}

// New validates the configuration and wires every component of a fresh
// run. Configuration problems are fatal here, before anything touches
// disk beyond the output directory skeleton.
func New(cfg *config.Config, evaluator any) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New(errors.InvalidConfiguration, "engine requires a configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eval, err := core.BuildEvaluator(evaluator)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "invalid evaluator")
	}
	space, err := cfg.BuildSearchSpace()
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	calc, err := fitness.NewCalculator(cfg.Weights, cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	selector, err := evolve.NewSelector(cfg.TournamentSize, evolve.TieBreak(cfg.TieBreak))
	if err != nil {
		return nil, err
	}
	operators, err := evolve.NewOperators(space, cfg.CrossoverRate, cfg.MutationRate)
	if err != nil {
		return nil, err
	}
	generator, err := evolve.NewGenerator(space, selector, operators,
		cfg.PopulationSize, cfg.EliteK, cfg.FreshK)
	if err != nil {
		return nil, err
	}
	adapter, err := evolve.NewSpaceAdapter(space,
		evolve.DefaultAdapterConfig(cfg.AdaptationIntervalGenerations))
	if err != nil {
		return nil, err
	}
	dispatcher, err := dispatch.New(eval, cfg.MaxParallelWorkers, cfg.EvaluationTimeout())
	if err != nil {
		return nil, err
	}
	arch, err := archive.New(cfg.ArchiveCapacity, cfg.NoveltyK)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	promoter, err := promotion.NewWriter(filepath.Join(cfg.OutputDir, "promotions"), runID)
	if err != nil {
		return nil, err
	}
	store, err := lineage.NewStore(filepath.Join(cfg.OutputDir, "instances"),
		cfg.SnapshotRetentionCount)
	if err != nil {
		return nil, err
	}
	tel, err := buildTelemetry(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		space:      space,
		rng:        rand.New(rand.NewSource(seed)),
		evaluator:  eval,
		calc:       calc,
		arch:       arch,
		generator:  generator,
		adapter:    adapter,
		dispatcher: dispatcher,
		promoter:   promoter,
		store:      store,
		tel:        tel,
		desc: lineage.Descriptor{
			Domain:       cfg.Domain,
			Version:      cfg.Version,
			OriginCommit: cfg.OriginCommit,
		},
		runID: runID,
		state: StateInitializing,
	}, nil
}

// Resume rebuilds a run from its newest promotion artifact and archive
// snapshot. An in-flight generation that never promoted is lost, which
// the durability contract tolerates; the resumed run continues from the
// generation after the last promotion.
func Resume(cfg *config.Config, evaluator any) (*Engine, error) {
	e, err := New(cfg, evaluator)
	if err != nil {
		return nil, err
	}

	art, err := promotion.Latest(filepath.Join(cfg.OutputDir, "promotions"))
	if err != nil {
		return nil, err
	}
	if art.Champion == nil || !art.Champion.Feasible() {
		return nil, errors.New(errors.IntegrityViolation,
			"promotion artifact carries no feasible champion")
	}
	e.champion = art.Champion
	e.generation = art.Generation + 1
	if len(art.Elites) > 0 {
		e.prior = art.Elites
	} else {
		e.prior = []*core.Candidate{art.Champion}
	}

	archPath := filepath.Join(cfg.OutputDir, "archive.json")
	if _, statErr := os.Stat(archPath); statErr == nil {
		arch, loadErr := archive.Load(archPath)
		if loadErr != nil {
			return nil, errors.Wrap(loadErr, errors.IntegrityViolation,
				"archive snapshot unreadable")
		}
		e.arch = arch
	}
	return e, nil
}

func buildTelemetry(outputDir string) (*telemetry.Writer, error) {
	file, err := telemetry.NewFileSink(filepath.Join(outputDir, "telemetry.jsonl"))
	if err != nil {
		return nil, err
	}
	db, err := telemetry.NewSQLiteSink(filepath.Join(outputDir, "telemetry.db"))
	if err != nil {
		file.Close()
		return nil, err
	}
	return telemetry.NewWriter(file, db), nil
}

// RunID identifies this run in logs and artifacts.
func (e *Engine) RunID() string { return e.runID }

// State reports the loop's current phase.
func (e *Engine) State() State { return e.state }

// Generation reports the index the loop will evaluate next.
func (e *Engine) Generation() int { return e.generation }

// Champion returns the current best-ever candidate, nil before the first
// promotion.
func (e *Engine) Champion() *core.Candidate { return e.champion }

// Run executes generations until max_generations is reached or the
// context is canceled, then closes the telemetry sinks.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	ctx = logging.WithRunID(ctx, e.runID)
	logger := logging.GetLogger()
	logger.Info(ctx, "starting run: %s", e.cfg)

	defer func() {
		e.state = StateStopped
		e.tel.Record(ctx, e.runEvent())
		if err := e.tel.Close(); err != nil {
			logger.Warn(ctx, "telemetry close failed: %v", err)
		}
	}()

	for e.cfg.MaxGenerations == 0 || e.generation < e.cfg.MaxGenerations {
		if err := errors.CheckContext(ctx, "run"); err != nil {
			return e.report(), err
		}
		if err := e.step(logging.WithGeneration(ctx, e.generation)); err != nil {
			return e.report(), err
		}
	}
	logger.Info(ctx, "run complete after %d generations", e.generation)
	return e.report(), nil
}

// step resolves one full generation.
func (e *Engine) step(ctx context.Context) error {
	logger := logging.GetLogger()

	e.state = StateGenerating
	population, err := e.generate()
	if err != nil {
		return err
	}
	for _, c := range population {
		c.Metadata = map[string]any{
			"run_id":     e.runID,
			"generation": c.Generation,
			"domain":     e.cfg.Domain,
		}
	}

	e.state = StateDispatching
	results := e.dispatcher.Run(ctx, population)

	e.state = StateScoring
	e.commit(ctx, results)
	e.scoreNovelty(population)

	e.state = StateSelecting
	ranked := evolve.TopK(population, len(population))
	best := ranked[0]
	e.snapshotLineage(ctx, population, best)

	if e.adapter.ShouldRun(e.generation) {
		e.state = StateAdapting
		for _, adj := range e.adapter.Adapt(population) {
			logger.Info(ctx, "adjusted dimension %s (%s)", adj.Dimension, adj.Action)
			ev := telemetry.NewEvent(e.cfg.Domain, telemetry.EventSpaceAdjustment)
			ev.Metadata = map[string]any{
				"generation": e.generation,
				"dimension":  adj.Dimension,
				"action":     adj.Action,
			}
			e.tel.Record(ctx, ev)
		}
	}

	e.state = StatePromoting
	e.promote(ctx, best, ranked)

	e.tel.Record(ctx, e.generationEvent(population, best))

	e.state = StateAdvancing
	e.prior = population
	e.generation++
	return nil
}

func (e *Engine) generate() ([]*core.Candidate, error) {
	if e.prior == nil {
		return e.generator.Initial(e.rng)
	}
	return e.generator.Next(e.rng, e.prior, e.generation)
}

// commit applies dispatch outcomes to the population. This is the only
// place evaluation results become candidate state.
func (e *Engine) commit(ctx context.Context, results []dispatch.Result) {
	logger := logging.GetLogger()
	for _, r := range results {
		c := r.Candidate
		if r.Err != nil {
			c.Status = core.StatusInfeasible
			c.Fitness = core.Infeasible
			ev := telemetry.NewEvent(e.cfg.Domain, telemetry.EventCandidateFailure)
			ev.Metadata = map[string]any{
				"candidate_id": c.ID,
				"generation":   c.Generation,
				"error_kind":   errors.Code(r.Err).String(),
				"error":        r.Err.Error(),
			}
			e.tel.Record(ctx, ev)
			continue
		}
		c.RawMetrics = r.Metrics
		c.Fitness = e.calc.Score(r.Metrics)
		if c.Feasible() {
			c.Status = core.StatusEvaluated
		} else {
			c.Status = core.StatusInfeasible
			logger.Debug(ctx, "candidate %s violated hard constraints", c.ID)
		}
	}
}

// scoreNovelty computes each candidate's novelty against the archive and
// its generation peers, then feeds the feasible ones into the archive.
func (e *Engine) scoreNovelty(population []*core.Candidate) {
	embeddings := make([][]float64, len(population))
	for i, c := range population {
		embeddings[i] = archive.Embed(e.space, c.Genome)
	}

	peers := make([][]float64, 0, len(population)-1)
	for i, c := range population {
		peers = peers[:0]
		for j := range population {
			if j != i {
				peers = append(peers, embeddings[j])
			}
		}
		c.Novelty = e.arch.Novelty(embeddings[i], peers)
	}

	var entries []*archive.Entry
	for i, c := range population {
		if !c.Feasible() {
			continue
		}
		entries = append(entries, &archive.Entry{
			CandidateID: c.ID,
			Embedding:   embeddings[i],
			Fitness:     c.Fitness,
			Novelty:     c.Novelty,
		})
	}
	e.arch.Update(entries)
}

// snapshotLineage wraps every evaluated candidate in its manifest/lineage
// pair and persists the generation's best feasible one; the store's
// retention cap keeps the run-wide top performers.
func (e *Engine) snapshotLineage(ctx context.Context, population []*core.Candidate, best *core.Candidate) {
	logger := logging.GetLogger()
	byID := make(map[string]*core.Candidate, len(e.prior))
	for _, p := range e.prior {
		byID[p.ID] = p
	}

	confSnap := e.cfg.Snapshot()
	for _, c := range population {
		var parent *core.Candidate
		if len(c.ParentIDs) > 0 {
			parent = byID[c.ParentIDs[0]]
		}
		m, l := lineage.NewRecords(e.desc, c, parent, confSnap)
		if c != best || !c.Feasible() {
			continue
		}
		if err := e.store.Save(ctx, m, l, confSnap, c.Fitness); err != nil {
			// Snapshot loss degrades analysis, never the run.
			logger.Error(ctx, "lineage snapshot failed for %s: %v", c.ID, err)
		}
	}
}

// promote writes a new champion artifact when the generation's best
// strictly improves on the current champion. A failed write costs this
// generation's promotion only.
func (e *Engine) promote(ctx context.Context, best *core.Candidate, ranked []*core.Candidate) {
	logger := logging.GetLogger()
	if !best.Feasible() {
		return
	}
	if e.champion != nil && best.Fitness <= e.champion.Fitness {
		return
	}

	best.Status = core.StatusPromoted
	// Infeasible fitness is -Inf, which JSON cannot encode; the elite set
	// only ever carries feasible candidates anyway.
	elites := make([]*core.Candidate, 0, e.cfg.EliteK)
	for _, c := range ranked {
		if len(elites) == e.cfg.EliteK {
			break
		}
		if c.Feasible() {
			elites = append(elites, c)
		}
	}
	artifact := &promotion.Artifact{
		Generation:     e.generation,
		Champion:       best,
		Elites:         elites,
		PopulationSize: e.cfg.PopulationSize,
		Config:         e.cfg.Snapshot(),
	}
	if _, err := e.promoter.Promote(ctx, artifact); err != nil {
		logger.Error(ctx, "promotion failed at generation %d: %v", e.generation, err)
		best.Status = core.StatusEvaluated
		return
	}
	e.champion = best.Clone()
	e.promotions++

	if err := e.arch.Save(filepath.Join(e.cfg.OutputDir, "archive.json")); err != nil {
		logger.Warn(ctx, "archive snapshot failed: %v", err)
	}

	ev := telemetry.NewEvent(e.cfg.Domain, telemetry.EventPromotion)
	ev.Metrics = map[string]float64{"fitness": best.Fitness}
	ev.Metadata = map[string]any{"candidate_id": best.ID, "generation": e.generation}
	e.tel.Record(ctx, ev)
}

func (e *Engine) generationEvent(population []*core.Candidate, best *core.Candidate) telemetry.Event {
	var feasible, novelties []float64
	for _, c := range population {
		novelties = append(novelties, c.Novelty)
		if c.Feasible() {
			feasible = append(feasible, c.Fitness)
		}
	}
	bestFitness := core.Infeasible
	if best.Feasible() {
		bestFitness = best.Fitness
	}
	return telemetry.GenerationEvent(e.cfg.Domain, e.generation,
		bestFitness, utils.Mean(feasible), utils.StdDev(novelties),
		e.space.ActiveCardinality())
}

func (e *Engine) runEvent() telemetry.Event {
	ev := telemetry.NewEvent(e.cfg.Domain, telemetry.EventRunComplete)
	ev.Metadata = map[string]any{
		"run_id":      e.runID,
		"generations": e.generation,
		"promotions":  e.promotions,
	}
	if e.champion != nil {
		ev.Metrics = map[string]float64{"champion_fitness": e.champion.Fitness}
	}
	return ev
}

func (e *Engine) report() *Report {
	return &Report{
		RunID:       e.runID,
		Generations: e.generation,
		Promotions:  e.promotions,
		Champion:    e.champion,
	}
}
