package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FSoft-AI4Code/swesynth-go/internal/logging"
	"github.com/FSoft-AI4Code/swesynth-go/internal/model"
	"github.com/FSoft-AI4Code/swesynth-go/internal/patch"
	"github.com/FSoft-AI4Code/swesynth-go/internal/pysource"
	"github.com/FSoft-AI4Code/swesynth-go/internal/status"
)

// EmptyClass targets every method of one class at once.
type EmptyClass struct {
	Env      *Env
	excluded map[string]struct{}
	parser   *pysource.Parser
}

// NewEmptyClass constructs the EmptyClass strategy over env.
func NewEmptyClass(env *Env) *EmptyClass {
	return &EmptyClass{Env: env, excluded: map[string]struct{}{}, parser: pysource.New()}
}

func (s *EmptyClass) Name() string { return "empty_class" }

func (s *EmptyClass) LoadCheckpoint(mutated map[string]struct{}) {
	for id := range mutated {
		s.excluded[id] = struct{}{}
	}
}

func (s *EmptyClass) Score(info status.MutationInfo, diff status.TestStatusDiff) float64 {
	degree := 0
	if s.Env.CallGraph != nil {
		for _, t := range info.ChangedTargets {
			degree += s.Env.CallGraph.FunctionDegree(t.NodeID())
		}
	}
	return defaultScore(degree, diff)
}

func (s *EmptyClass) Propose(ctx context.Context) (<-chan Candidate, <-chan error) {
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

func (s *EmptyClass) run(ctx context.Context, out chan<- Candidate) error {
	log := logging.For(logging.Strategy).Sugar()

	files, err := pythonFiles(s.Env.CloneDir)
	if err != nil {
		return fmt.Errorf("empty_class: list files: %w", err)
	}

	for _, rel := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		content, err := os.ReadFile(filepath.Join(s.Env.CloneDir, rel))
		if err != nil {
			continue
		}
		classes, err := s.parser.ParseClasses(rel, content)
		if err != nil {
			log.Warnw("failed to parse file, skipping", "file", rel, "error", err)
			continue
		}

		for _, cls := range classes {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := s.proposeForClass(ctx, rel, string(content), cls, out); err != nil {
				log.Warnw("failed proposing for class", "target", cls.Target.NodeID(), "error", err)
			}
		}
	}
	return nil
}

func (s *EmptyClass) proposeForClass(ctx context.Context, rel, originalText string, cls pysource.ClassSpan, out chan<- Candidate) error {
	log := logging.For(logging.Strategy).Sugar()
	nodeID := cls.Target.NodeID()

	if _, excluded := s.excluded[nodeID]; excluded {
		return nil
	}
	if len(cls.Methods) == 0 {
		return nil
	}

	targets := make([]status.Target, len(cls.Methods))
	exercised := false
	for i, m := range cls.Methods {
		targets[i] = m.Target
		if s.Env.CallGraph != nil && s.Env.CallGraph.FunctionDegree(m.Target.NodeID()) > 0 {
			exercised = true
		}
	}
	if !exercised {
		return nil
	}

	related := map[string]struct{}{}
	if s.Env.CallGraph != nil {
		related = s.Env.CallGraph.GetRelatedTests(targets)
	}
	if len(related) == 0 {
		return nil
	}

	hint := pysource.HintClass(originalText, cls)
	emptyText := pysource.EmptyClass(originalText, cls, pysource.DefaultEmptyBody)
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
		return fmt.Errorf("confirm class target: %w", err)
	}
	if len(perturbed) == 0 {
		log.Debugw("class target rejected: emptying body perturbs no test", "target", nodeID)
		return nil
	}

	dedupe := newDiffDedupe()
	placeholderCount := strings.Count(emptyText, pysource.DefaultEmptyBody)
	attempts := s.Env.MutationPerTarget * 3
	emitted := 0
	for i := 0; i < attempts && emitted < s.Env.MutationPerTarget; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := s.Env.Model.Complete(ctx, model.Request{
			System: systemPrompt,
			User:   userPrompt(cls.Target.Name, emptyText, hint),
		})
		if err != nil {
			log.Warnw("model call failed, skipping class target attempt", "target", nodeID, "error", err)
			return nil
		}

		code := extractCode(resp)
		if introducesImport(code) {
			log.Debugw("rejected model output introducing an import", "target", nodeID)
			continue
		}

		newText := pysource.ReplaceClass(originalText, cls, code)
		// Reject if the model didn't actually fill anything in: the same
		// number of placeholder statements survive the replacement
		//.
		if strings.Count(newText, pysource.DefaultEmptyBody) >= placeholderCount {
			log.Debugw("rejected no-op class replacement", "target", nodeID)
			continue
		}

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
				ChangedTargets: targets,
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

func (s *EmptyClass) writeAndDiff(ctx context.Context, rel, newText string) (string, error) {
	return patch.Produce(ctx, s.Env.CloneDir, rel, newText)
}

func (s *EmptyClass) resetTree(ctx context.Context) {
	if err := patch.Revert(ctx, s.Env.CloneDir); err != nil {
		logging.For(logging.Strategy).Sugar().Errorw("failed to revert working tree after probe", "error", err)
	}
}
