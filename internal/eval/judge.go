package eval

import (
	"context"
	"fmt"

	"github.com/finsight-io/finsight-agent/pkg/agent"
)

// Grade is the judge's structured verdict for one answer.
type Grade struct {
	Score     float64 `json:"score" jsonschema_description:"Correctness score between 0.0 and 1.0"`
	Verdict   string  `json:"verdict" jsonschema_description:"One of: correct, partially_correct, incorrect"`
	Reasoning string  `json:"reasoning" jsonschema_description:"Short justification for the score"`
}

// Judge grades agent answers against a reference using an LLM.
type Judge struct{ *agent.Base }

func NewJudge(b *agent.Base) *Judge {
	return &Judge{Base: b}
}

func (j *Judge) Grade(ctx context.Context, question, reference, answer string) (Grade, error) {
	grade, _, err := agent.Run[Grade](ctx, j.Base, agent.RunParams{
		System: systemJudge,
		Prompt: promptJudge(question, reference, answer),
	})
	if err != nil {
		return Grade{}, fmt.Errorf("run judge: %w", err)
	}
	if grade.Score < 0 || grade.Score > 1 {
		return Grade{}, fmt.Errorf("judge returned score %v outside [0, 1]", grade.Score)
	}
	return grade, nil
}

const systemJudge = "You are a strict evaluator of financial research answers. " +
	"Compare the submitted answer against the reference answer. " +
	"Judge factual accuracy of the figures and conclusions, not style or length. " +
	"Minor numeric drift from live market data is acceptable when the answer is directionally " +
	"consistent with the reference. Missing or contradicting key facts is not."

func promptJudge(question, reference, answer string) string {
	return fmt.Sprintf(
		"Grade the following answer.\n\n<question>%s</question>\n\n<reference>%s</reference>\n\n<answer>%s</answer>",
		question, reference, answer,
	)
}
