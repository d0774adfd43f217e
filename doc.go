// Package spica is an autonomous evolutionary parameter-optimization
// engine. It searches a configuration space by running successive
// generations of candidate configurations, evaluating each through a
// caller-supplied black-box Evaluator, scoring candidates on six weighted
// performance axes with hard safety constraints, and promoting the
// best-ever candidate as a durable champion artifact.
//
// Key components:
//
//   - pkg/core: the candidate/genome/search-space data model and the
//     Evaluator capability every run is built around.
//
//   - pkg/fitness: maps raw evaluation metrics onto six normalized axes
//     and combines them under configurable weights; hard-constraint
//     violations gate fitness to -Inf regardless of the other axes.
//
//   - pkg/archive: a bounded novelty archive scoring each candidate's
//     distance to its nearest neighbors, preserving genomic diversity
//     when the fitness signal flattens.
//
//   - pkg/evolve: tournament selection, uniform crossover, mutation,
//     elitism-aware population generation and periodic search-space
//     adaptation.
//
//   - pkg/dispatch: bounded-parallel, fault-isolated candidate
//     evaluation with per-candidate timeouts.
//
//   - pkg/lineage: tamper-evident SPICA manifests and retention-capped
//     snapshot storage.
//
//   - pkg/promotion, pkg/telemetry: atomic champion artifacts and
//     append-only run telemetry for external consumers to poll.
//
//   - pkg/engine: the sequential generation loop tying it all together,
//     resumable from the last promotion artifact plus archive snapshot.
//
// A minimal run:
//
//	cfg := config.Default()
//	cfg.Domain = "allocator"
//	cfg.OutputDir = "/var/lib/spica/allocator"
//	cfg.SearchSpace = []config.DimensionConfig{ /* dimensions */ }
//
//	eng, err := engine.New(cfg, myEvaluator)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := eng.Run(ctx)
package spica
