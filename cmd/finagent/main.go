// Command finagent answers a single financial research question from the
// command line.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/finsight-io/finsight-agent/internal/config"
	"github.com/finsight-io/finsight-agent/internal/marketdata"
	"github.com/finsight-io/finsight-agent/internal/research"
	"github.com/finsight-io/finsight-agent/internal/trace"
	"github.com/finsight-io/finsight-agent/internal/websearch"
	"github.com/finsight-io/finsight-agent/pkg/agent"
	"github.com/finsight-io/finsight-agent/pkg/tool"
)

const maxToolLogLength = 500

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %s\n", err)
	}
}

func run() error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(os.Args[1:], " "))
	if question == "" {
		return fmt.Errorf("usage: finagent <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := slog.New(
		slog.NewTextHandler(
			log.Writer(),
			&slog.HandlerOptions{Level: slog.LevelInfo},
		),
	)

	model, err := cfg.AgentLLM()
	if err != nil {
		return fmt.Errorf("agent model: %w", err)
	}
	logger.Info(fmt.Sprintf("using %s model %q", model.Provider, model.Name))

	agentBase := &agent.Base{
		Model:            model,
		MaxToolLogLength: maxToolLogLength,
		Logger:           logger,
		MaxIterations:    cfg.AgentMaxIterations,
		Timebox:          cfg.Timebox(),
	}
	researcher := research.NewResearcher(agentBase, buildTools(cfg, logger))

	tracer := trace.NewClient(cfg.LangSmithAPIKey, cfg.LangSmithProject, logger)
	traceRun, err := tracer.StartRun(ctx, "finagent", map[string]any{"question": question})
	if err != nil {
		logger.Warn("start trace run", "error", err)
	}

	answer, err := researcher.Research(ctx, question)
	var outputs map[string]any
	if err == nil {
		outputs = map[string]any{"answer": answer.Text}
	}
	if traceErr := tracer.EndRun(ctx, traceRun, outputs, err); traceErr != nil {
		logger.Warn("end trace run", "error", traceErr)
	}
	if err != nil {
		return fmt.Errorf("research: %w", err)
	}

	fmt.Printf("%s\n", answer.Text)
	logger.Info(fmt.Sprintf("total usage: %s", answer.Usage))

	return nil
}

func buildTools(cfg *config.Config, logger *slog.Logger) []tool.Definition {
	tools := research.Tools(marketdata.NewClient(logger))
	if cfg.TavilyAPIKey != "" {
		tools = append(tools, websearch.NewClient(cfg.TavilyAPIKey, logger).Tool())
	} else {
		logger.Info("no search API key configured, web search tool disabled")
	}
	return tools
}
