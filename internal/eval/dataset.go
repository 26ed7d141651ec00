// Package eval runs a dataset of research questions through the agent and
// grades the answers with an LLM judge.
package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Case is one evaluation example: a question plus the reference answer the
// judge compares against.
type Case struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Reference string `json:"reference"`
}

// LoadDataset reads a JSONL dataset. Blank lines and #-prefixed lines are
// skipped.
func LoadDataset(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	var cases []Case
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var c Case
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNum, err)
		}
		if c.Question == "" {
			return nil, fmt.Errorf("line %d: question is required", lineNum)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", lineNum)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset %s contains no cases", path)
	}
	return cases, nil
}
