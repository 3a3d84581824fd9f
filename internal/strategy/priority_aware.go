package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// PriorityAware is the EmptyFunction variant whose target selection is a
// weighted random draw over candidate functions, weighted by the call-
// graph map's function-degree score.
// Mutation of a selected target reuses EmptyFunction's per-target
// proposal logic exactly — only the *order and subset* of targets visited
// differs.
type PriorityAware struct {
	inner    *EmptyFunction
	excluded map[string]struct{}
}

// NewPriorityAware constructs the PriorityAware strategy over env.
func NewPriorityAware(env *Env) *PriorityAware {
	return &PriorityAware{inner: NewEmptyFunction(env), excluded: map[string]struct{}{}}
}

func (s *PriorityAware) Name() string { return "priority_aware" }

func (s *PriorityAware) LoadCheckpoint(mutated map[string]struct{}) {
	s.inner.LoadCheckpoint(mutated)
	for id := range mutated {
		s.excluded[id] = struct{}{}
	}
}

func (s *PriorityAware) Score(info status.MutationInfo, diff status.TestStatusDiff) float64 {
	return s.inner.Score(info, diff)
}

func (s *PriorityAware) Propose(ctx context.Context) (<-chan Candidate, <-chan error) {
	out := make(chan Candidate)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		if err := s.run(ctx, out); err != nil {
			errc <- err
		}
	}()
	return out, errc
}

// weightedTarget pairs a parsed function with the file text it came from
// and its call-graph sampling weight.
type weightedTarget struct {
	rel     string
	content string
	fn      pysource.FuncSpan
	weight  float64
}

func (s *PriorityAware) run(ctx context.Context, out chan<- Candidate) error {
	log := logging.For(logging.Strategy).Sugar()
	env := s.inner.Env

	files, err := pythonFiles(env.CloneDir)
	if err != nil {
		return fmt.Errorf("priority_aware: list files: %w", err)
	}

	var pool []weightedTarget
	parser := s.inner.parser
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(env.CloneDir, rel))
		if err != nil {
			continue
		}
		funcs, err := parser.ParseFunctions(rel, content)
		if err != nil {
			log.Warnw("failed to parse file, skipping", "file", rel, "error", err)
			continue
		}
		for _, fn := range funcs {
			nodeID := fn.Target.NodeID()
			if _, excluded := s.excluded[nodeID]; excluded {
				continue
			}
			degree := 0
			if env.CallGraph != nil {
				degree = env.CallGraph.FunctionDegree(nodeID)
			}
			if degree == 0 {
				continue
			}
			pool = append(pool, weightedTarget{rel: rel, content: string(content), fn: fn, weight: float64(degree)})
		}
	}

	var rng interface{ Float64() float64 }
	if env.Rand != nil {
		rng = env.Rand
	} else {
		rng = defaultDeterministicRand()
	}

	for len(pool) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		idx := weightedSample(rng, pool)
		chosen := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		if err := s.inner.proposeForTarget(ctx, chosen.rel, chosen.content, chosen.fn, out); err != nil {
			log.Warnw("failed proposing for priority-weighted target", "target", chosen.fn.Target.NodeID(), "error", err)
		}
	}
	return nil
}

// weightedSample draws one index from targets, proportional to weight.
func weightedSample(rng interface{ Float64() float64 }, targets []weightedTarget) int {
	total := 0.0
	for _, t := range targets {
		total += t.weight
	}
	if total <= 0 {
		return 0
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, t := range targets {
		acc += t.weight
		if r <= acc {
			return i
		}
	}
	return len(targets) - 1
}

func defaultDeterministicRand() interface{ Float64() float64 } {
	return deterministicRand{}
}

// deterministicRand is a trivial stand-in used only if the caller forgot
// to seed Env.Rand; callers should always supply a seeded *rand.Rand so
// runs stay reproducible.
type deterministicRand struct{}

func (deterministicRand) Float64() float64 { return 0.5 }
