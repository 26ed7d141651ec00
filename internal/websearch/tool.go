package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight-io/finsight-agent/pkg/llm"
	"github.com/finsight-io/finsight-agent/pkg/tool"
)

type searchInput struct {
	Query string `json:"query" jsonschema_description:"The search query, e.g. 'latest Apple earnings report'"`
}

// Tool exposes the client as an agent tool. Results are rendered as plain
// text so the model can quote titles and URLs.
func (c *Client) Tool() tool.Definition {
	return tool.Definition{
		ToolDefinition: llm.ToolDefinition{
			Name: "web_search",
			Description: "Search the web for current information: news, earnings reports, " +
				"analyst commentary and anything not covered by the market data tools.",
			Schema: tool.GenerateSchema[searchInput](),
		},
		UseFunc: func(ctx context.Context, llmInput json.RawMessage) (string, error) {
			var input searchInput
			if err := json.Unmarshal(llmInput, &input); err != nil {
				return "", fmt.Errorf("unmarshal input: %w", err)
			}
			if strings.TrimSpace(input.Query) == "" {
				return "", fmt.Errorf("query is required")
			}

			resp, err := c.Search(ctx, input.Query)
			if err != nil {
				return "", fmt.Errorf("search %q: %w", input.Query, err)
			}
			return formatResults(resp), nil
		},
	}
}

func formatResults(resp *SearchResponse) string {
	var sb strings.Builder
	if resp.Answer != "" {
		sb.WriteString("Answer: " + resp.Answer + "\n\n")
	}
	if len(resp.Results) == 0 {
		sb.WriteString("No results found.")
		return sb.String()
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}
