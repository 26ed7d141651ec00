package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finsight-io/finsight-agent/internal/research"
	"github.com/finsight-io/finsight-agent/internal/trace"
	"golang.org/x/sync/errgroup"
)

// Answerer produces an answer for a question. Satisfied by
// *research.Researcher.
type Answerer interface {
	Research(ctx context.Context, question string) (research.Answer, error)
}

// Grader scores an answer against a reference. Satisfied by *Judge.
type Grader interface {
	Grade(ctx context.Context, question, reference, answer string) (Grade, error)
}

// Runner executes evaluation cases with bounded parallelism and aggregates
// the grades.
type Runner struct {
	Answerer       Answerer
	Grader         Grader
	Tracer         *trace.Client
	MaxConcurrency int
	Logger         *slog.Logger
}

// CaseResult is the outcome of a single case. Error is set when either the
// agent run or the grading failed; such cases score zero.
type CaseResult struct {
	Case   Case
	Answer string
	Grade  Grade
	Error  string
}

type Report struct {
	Results []CaseResult
}

// Run evaluates all cases. A failing case is recorded in the report, not
// returned as an error; Run only fails when the context is canceled.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	results := make([]CaseResult, len(cases))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.MaxConcurrency)
	for i, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.runCase(ctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run cases: %w", err)
	}
	return &Report{Results: results}, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	logger := r.Logger.With("case", c.ID)
	logger.Info("evaluating case", "question", c.Question)

	run, err := r.Tracer.StartRun(ctx, "eval:"+c.ID, map[string]any{
		"question":  c.Question,
		"reference": c.Reference,
	})
	if err != nil {
		// Tracing failures must not fail the evaluation.
		logger.Warn("start trace run", "error", err)
	}

	answer, err := r.Answerer.Research(ctx, c.Question)
	if err != nil {
		logger.Error("agent run failed", "error", err)
		if traceErr := r.Tracer.EndRun(ctx, run, nil, err); traceErr != nil {
			logger.Warn("end trace run", "error", traceErr)
		}
		return CaseResult{Case: c, Error: fmt.Sprintf("research: %s", err)}
	}

	grade, err := r.Grader.Grade(ctx, c.Question, c.Reference, answer.Text)
	if err != nil {
		logger.Error("grading failed", "error", err)
		if traceErr := r.Tracer.EndRun(ctx, run, map[string]any{"answer": answer.Text}, err); traceErr != nil {
			logger.Warn("end trace run", "error", traceErr)
		}
		return CaseResult{Case: c, Answer: answer.Text, Error: fmt.Sprintf("grade: %s", err)}
	}

	if err := r.Tracer.EndRun(ctx, run, map[string]any{"answer": answer.Text}, nil); err != nil {
		logger.Warn("end trace run", "error", err)
	}
	if err := r.Tracer.AddFeedback(ctx, run, "correctness", grade.Score, grade.Reasoning); err != nil {
		logger.Warn("add trace feedback", "error", err)
	}

	logger.Info("case graded", "score", grade.Score, "verdict", grade.Verdict)
	return CaseResult{Case: c, Answer: answer.Text, Grade: grade}
}

// MeanScore averages the scores over all cases, counting failed cases as
// zero.
func (rep *Report) MeanScore() float64 {
	if len(rep.Results) == 0 {
		return 0
	}
	var sum float64
	for _, res := range rep.Results {
		sum += res.Grade.Score
	}
	return sum / float64(len(rep.Results))
}

func (rep *Report) FailureCount() int {
	var n int
	for _, res := range rep.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}
