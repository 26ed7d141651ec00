package research

import (
	"context"
	"fmt"

	"github.com/finsight-io/finsight-agent/pkg/agent"
	"github.com/finsight-io/finsight-agent/pkg/llm"
	"github.com/finsight-io/finsight-agent/pkg/tool"
)

// Answer is a completed research run.
type Answer struct {
	Text  string
	Usage llm.TokenUsage
}

// Researcher answers financial questions using the analysis toolset.
type Researcher struct {
	*agent.Base
	tools []tool.Definition
}

func NewResearcher(b *agent.Base, tools []tool.Definition) *Researcher {
	return &Researcher{Base: b, tools: tools}
}

func (r *Researcher) Research(ctx context.Context, question string) (Answer, error) {
	text, meta, err := agent.Run[string](ctx, r.Base, agent.RunParams{
		System: systemResearcher,
		Prompt: promptResearcher(question),
		Tools:  r.tools,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("run researcher: %w", err)
	}
	return Answer{Text: text, Usage: meta.Usage}, nil
}

const systemResearcher = "You are a professional financial research analyst. " +
	"Answer questions about stocks, companies and investments using the available tools. " +
	"Base every number you state on tool output, never on memory. " +
	"If a tool fails, say what data is missing instead of guessing. " +
	"Keep answers factual and concise, and mention the relevant figures (prices, ratios, returns) explicitly. " +
	"You are not giving personalized investment advice."

func promptResearcher(question string) string {
	return fmt.Sprintf(
		"Research the following question and return your answer by calling the %q tool:\n\n%s",
		tool.FinalResultToolName, question,
	)
}
