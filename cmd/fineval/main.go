// Command fineval runs an evaluation dataset through the research agent and
// prints the graded report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/finsight-io/finsight-agent/internal/config"
	"github.com/finsight-io/finsight-agent/internal/eval"
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

	datasetPath := flag.String("dataset", "evals.jsonl", "path to the JSONL evaluation dataset")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := slog.New(
		slog.NewTextHandler(
			log.Writer(),
			&slog.HandlerOptions{Level: slog.LevelWarn},
		),
	)

	cases, err := eval.LoadDataset(*datasetPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	agentModel, err := cfg.AgentLLM()
	if err != nil {
		return fmt.Errorf("agent model: %w", err)
	}
	judgeModel, err := cfg.EvaluatorLLM()
	if err != nil {
		return fmt.Errorf("evaluator model: %w", err)
	}

	agentBase := &agent.Base{
		Model:            agentModel,
		MaxToolLogLength: maxToolLogLength,
		Logger:           logger,
		MaxIterations:    cfg.AgentMaxIterations,
		Timebox:          cfg.Timebox(),
		// Identical questions re-run across evaluations must not share a
		// provider-side prompt cache prefix with earlier answers.
		CacheBust: true,
	}
	judgeBase := &agent.Base{
		Model:            judgeModel,
		MaxToolLogLength: maxToolLogLength,
		Logger:           logger,
	}

	runner := &eval.Runner{
		Answerer:       research.NewResearcher(agentBase, buildTools(cfg, logger)),
		Grader:         eval.NewJudge(judgeBase),
		Tracer:         trace.NewClient(cfg.LangSmithAPIKey, cfg.LangSmithProject, logger),
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger,
	}

	fmt.Printf("Evaluating %d cases (concurrency %d)...\n\n", len(cases), cfg.MaxConcurrency)
	report, err := runner.Run(ctx, cases)
	if err != nil {
		return fmt.Errorf("run evaluation: %w", err)
	}

	printReport(report)
	fmt.Printf(
		"\nagent usage: %s\njudge usage: %s\n",
		agentBase.LLMUsage(), judgeBase.LLMUsage(),
	)
	return nil
}

func printReport(report *eval.Report) {
	for _, res := range report.Results {
		if res.Error != "" {
			fmt.Printf("FAIL  %-20s error: %s\n", res.Case.ID, res.Error)
			continue
		}
		fmt.Printf("%.2f  %-20s %s: %s\n", res.Grade.Score, res.Case.ID, res.Grade.Verdict, res.Grade.Reasoning)
	}
	fmt.Printf(
		"\nmean score: %.3f over %d cases (%d failed)\n",
		report.MeanScore(), len(report.Results), report.FailureCount(),
	)
}

func buildTools(cfg *config.Config, logger *slog.Logger) []tool.Definition {
	tools := research.Tools(marketdata.NewClient(logger))
	if cfg.TavilyAPIKey != "" {
		tools = append(tools, websearch.NewClient(cfg.TavilyAPIKey, logger).Tool())
	}
	return tools
}
