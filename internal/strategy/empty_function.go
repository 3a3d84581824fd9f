package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/model"
	"github.com/FSoft-AI4Code/swesynth-go/internal/patch"
	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// EmptyFunction targets one function at a time.
type EmptyFunction struct {
	Env      *Env
	excluded map[string]struct{}
	parser   *pysource.Parser
}

// NewEmptyFunction constructs the EmptyFunction strategy over env.
func NewEmptyFunction(env *Env) *EmptyFunction {
	return &EmptyFunction{Env: env, excluded: map[string]struct{}{}, parser: pysource.New()}
}

func (s *EmptyFunction) Name() string { return "empty_function" }

func (s *EmptyFunction) LoadCheckpoint(mutated map[string]struct{}) {
	for id := range mutated {
		s.excluded[id] = struct{}{}
	}
}

func (s *EmptyFunction) Score(info status.MutationInfo, diff status.TestStatusDiff) float64 {
	degree := 0
	if s.Env.CallGraph != nil && len(info.ChangedTargets) > 0 {
		degree = s.Env.CallGraph.FunctionDegree(info.ChangedTargets[0].NodeID())
	}
	return defaultScore(degree, diff)
}

func (s *EmptyFunction) Propose(ctx context.Context) (<-chan Candidate, <-chan error) {
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

func (s *EmptyFunction) run(ctx context.Context, out chan<- Candidate) error {
	log := logging.For(logging.Strategy).Sugar()

	files, err := pythonFiles(s.Env.CloneDir)
	if err != nil {
		return fmt.Errorf("empty_function: list files: %w", err)
	}

	for _, rel := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		content, err := os.ReadFile(filepath.Join(s.Env.CloneDir, rel))
		if err != nil {
			continue
		}
		funcs, err := s.parser.ParseFunctions(rel, content)
		if err != nil {
			log.Warnw("failed to parse file, skipping", "file", rel, "error", err)
			continue
		}

		for _, fn := range funcs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := s.proposeForTarget(ctx, rel, string(content), fn, out); err != nil {
				log.Warnw("failed proposing for target", "target", fn.Target.NodeID(), "error", err)
			}
		}
	}
	return nil
}

func (s *EmptyFunction) proposeForTarget(ctx context.Context, rel, originalText string, fn pysource.FuncSpan, out chan<- Candidate) error {
	log := logging.For(logging.Strategy).Sugar()
	nodeID := fn.Target.NodeID()

	if _, excluded := s.excluded[nodeID]; excluded {
		return nil
	}
	if s.Env.CallGraph == nil || s.Env.CallGraph.FunctionDegree(nodeID) == 0 {
		return nil // not exercised by any test per the call-graph map
	}

	related := s.Env.CallGraph.GetRelatedTests([]status.Target{fn.Target})
	if len(related) == 0 {
		return nil
	}

	hint := pysource.HintFunction(originalText, fn)
	emptyText := pysource.EmptyFunction(originalText, fn, pysource.DefaultEmptyBody)
	emptyDiff, err := s.writeAndDiff(ctx, rel, emptyText)
	if err != nil {
		return err
	}
	defer s.resetTree(ctx)

	if emptyDiff == "" {
		return nil
	}

	perturbed, err := s.Env.Targeter.Confirm(ctx, emptyDiff, s.Env.Baseline, related)
	if err != nil {
		return fmt.Errorf("confirm target: %w", err)
	}
	if len(perturbed) == 0 {
		log.Debugw("target rejected: emptying body perturbs no test", "target", nodeID)
		return nil
	}

	dedupe := newDiffDedupe()
	attempts := s.Env.MutationPerTarget * 3
	emitted := 0
	for i := 0; i < attempts && emitted < s.Env.MutationPerTarget; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := s.Env.Model.Complete(ctx, model.Request{
			System: systemPrompt,
			User:   userPrompt(fn.Target.Name, emptyText, hint),
		})
		if err != nil {
			log.Warnw("model call failed, skipping target attempt", "target", nodeID, "error", err)
			return nil
		}

		code := extractCode(resp)
		if introducesImport(code) {
			log.Debugw("rejected model output introducing an import", "target", nodeID)
			continue
		}

		newText := pysource.ReplaceFunction(originalText, fn, code, true)
		diff, err := s.writeAndDiff(ctx, rel, newText)
		s.resetTree(ctx)
		if err != nil {
			return err
		}
		if diff == "" || dedupe.seenBefore(diff) {
			continue
		}

		out <- Candidate{
			Diff: diff,
			Info: status.MutationInfo{
				ChangedTargets: []status.Target{fn.Target},
				Metadata: map[string]string{
					"empty_body_diff":     emptyDiff,
					"signature_hint":      hint,
					"pre_mutation_source": originalText,
				},
				Strategy:        s.Name(),
				ModelResponse:   resp,
				ModelIdentifier: s.Env.ModelIdentifier,
			},
		}
		emitted++
	}
	return nil
}

func (s *EmptyFunction) writeAndDiff(ctx context.Context, rel, newText string) (string, error) {
	return patch.Produce(ctx, s.Env.CloneDir, rel, newText)
}

func (s *EmptyFunction) resetTree(ctx context.Context) {
	if err := patch.Revert(ctx, s.Env.CloneDir); err != nil {
		logging.For(logging.Strategy).Sugar().Errorw("failed to revert working tree after probe", "error", err)
	}
}
