package eval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finsight-io/finsight-agent/internal/research"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAnswerer struct {
	answer     func(question string) (research.Answer, error)
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
	sleepEvery time.Duration
}

func (f *fakeAnswerer) Research(_ context.Context, question string) (research.Answer, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.sleepEvery > 0 {
		time.Sleep(f.sleepEvery)
	}
	return f.answer(question)
}

type fakeGrader struct {
	grade func(question, reference, answer string) (Grade, error)
}

func (f *fakeGrader) Grade(_ context.Context, question, reference, answer string) (Grade, error) {
	return f.grade(question, reference, answer)
}

func cases(n int) []Case {
	out := make([]Case, n)
	for i := range out {
		out[i] = Case{
			ID:        fmt.Sprintf("case-%d", i),
			Question:  fmt.Sprintf("question %d", i),
			Reference: fmt.Sprintf("reference %d", i),
		}
	}
	return out
}

func TestRunnerGradesAllCases(t *testing.T) {
	answerer := &fakeAnswerer{answer: func(q string) (research.Answer, error) {
		return research.Answer{Text: "answer to " + q}, nil
	}}
	grader := &fakeGrader{grade: func(q, ref, ans string) (Grade, error) {
		assert.Equal(t, "answer to "+q, ans)
		return Grade{Score: 1, Verdict: "correct", Reasoning: "matches " + ref}, nil
	}}

	runner := &Runner{
		Answerer:       answerer,
		Grader:         grader,
		MaxConcurrency: 2,
		Logger:         testLogger(),
	}
	report, err := runner.Run(context.Background(), cases(5))
	require.NoError(t, err)

	require.Len(t, report.Results, 5)
	for i, res := range report.Results {
		assert.Equal(t, fmt.Sprintf("case-%d", i), res.Case.ID, "result order matches case order")
		assert.Empty(t, res.Error)
		assert.Equal(t, 1.0, res.Grade.Score)
	}
	assert.Equal(t, 1.0, report.MeanScore())
	assert.Equal(t, 0, report.FailureCount())
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	answerer := &fakeAnswerer{
		answer: func(string) (research.Answer, error) {
			return research.Answer{Text: "ok"}, nil
		},
		sleepEvery: 20 * time.Millisecond,
	}
	grader := &fakeGrader{grade: func(string, string, string) (Grade, error) {
		return Grade{Score: 1}, nil
	}}

	runner := &Runner{
		Answerer:       answerer,
		Grader:         grader,
		MaxConcurrency: 3,
		Logger:         testLogger(),
	}
	_, err := runner.Run(context.Background(), cases(12))
	require.NoError(t, err)
	assert.LessOrEqual(t, answerer.maxSeen.Load(), int32(3))
}

func TestRunnerRecordsFailuresWithoutAborting(t *testing.T) {
	answerer := &fakeAnswerer{answer: func(q string) (research.Answer, error) {
		if q == "question 1" {
			return research.Answer{}, fmt.Errorf("provider exploded")
		}
		return research.Answer{Text: "fine"}, nil
	}}
	grader := &fakeGrader{grade: func(q, _, _ string) (Grade, error) {
		if q == "question 2" {
			return Grade{}, fmt.Errorf("judge exploded")
		}
		return Grade{Score: 0.5, Verdict: "partially_correct"}, nil
	}}

	runner := &Runner{
		Answerer:       answerer,
		Grader:         grader,
		MaxConcurrency: 1,
		Logger:         testLogger(),
	}
	report, err := runner.Run(context.Background(), cases(4))
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	assert.Contains(t, report.Results[1].Error, "provider exploded")
	assert.Contains(t, report.Results[2].Error, "judge exploded")
	assert.Equal(t, 2, report.FailureCount())

	// Failed cases count as zero: (0.5 + 0 + 0 + 0.5) / 4.
	assert.InDelta(t, 0.25, report.MeanScore(), 1e-9)
}

func TestRunnerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{
		Answerer: &fakeAnswerer{answer: func(string) (research.Answer, error) {
			return research.Answer{}, nil
		}},
		Grader: &fakeGrader{grade: func(string, string, string) (Grade, error) {
			return Grade{}, nil
		}},
		MaxConcurrency: 2,
		Logger:         testLogger(),
	}
	_, err := runner.Run(ctx, cases(3))
	require.Error(t, err)
}

func TestReportEmpty(t *testing.T) {
	rep := &Report{}
	assert.Equal(t, 0.0, rep.MeanScore())
	assert.Equal(t, 0, rep.FailureCount())
}
