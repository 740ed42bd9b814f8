// Package compiler renders a template's authoring-time fragments into the
// single runtime prompt artifact shipped to installed agents.
//
// Compilation is a pure function of its inputs: same active-entity snapshot
// in, byte-identical prompt out. Nothing in here touches the clock, random
// ids, or storage.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"agentfoundry/internal/logging"
	"agentfoundry/internal/types"
)

// Input is the snapshot a prompt is compiled from. Inactive fragments are
// filtered here, so callers can pass store listings as-is.
type Input struct {
	Template *types.AgentTemplate
	Layers   []types.PromptLayer
	Rules    []types.Rule
	Examples []types.Example
}

// Stats describes what went into a compiled prompt, for the editor preview.
type Stats struct {
	Layers   int `json:"layers"`
	Rules    int `json:"rules"`
	Examples int `json:"examples"`
	Bytes    int `json:"bytes"`
}

// Result is a compiled prompt plus its section stats.
type Result struct {
	Prompt string `json:"prompt"`
	Stats  Stats  `json:"stats"`
}

// Compile assembles the runtime prompt:
//
//  1. core prompt
//  2. active layers, priority ascending, insertion order breaking ties
//  3. one rules block, grouped by rule type in fixed order
//  4. one few-shot block, examples in sort order
//
// Empty sections are omitted entirely rather than emitting bare headers.
func Compile(in Input) (*Result, error) {
	if in.Template == nil {
		return nil, types.ValidationError("template", "template is required")
	}
	if strings.TrimSpace(in.Template.CorePrompt) == "" {
		return nil, types.ValidationError("core_prompt", "template has no core prompt")
	}

	var sections []string
	sections = append(sections, strings.TrimRight(in.Template.CorePrompt, "\n"))

	layers := activeLayers(in.Layers)
	for _, l := range layers {
		sections = append(sections, strings.TrimRight(l.Content, "\n"))
	}

	rules := activeRules(in.Rules)
	if block := rulesBlock(rules); block != "" {
		sections = append(sections, block)
	}

	examples := activeExamples(in.Examples)
	if block := examplesBlock(examples); block != "" {
		sections = append(sections, block)
	}

	prompt := strings.Join(sections, "\n\n") + "\n"

	logging.Get(logging.CategoryCompiler).Debug("compiled prompt",
		zap.String("template_id", in.Template.ID),
		zap.Int("layers", len(layers)),
		zap.Int("rules", len(rules)),
		zap.Int("examples", len(examples)),
		zap.Int("bytes", len(prompt)))

	return &Result{
		Prompt: prompt,
		Stats: Stats{
			Layers:   len(layers),
			Rules:    len(rules),
			Examples: len(examples),
			Bytes:    len(prompt),
		},
	}, nil
}

// activeLayers filters and orders layers by priority. The sort is stable, so
// equal priorities keep the creation order the store lists them in. Layer
// type never participates in ordering.
func activeLayers(layers []types.PromptLayer) []types.PromptLayer {
	out := make([]types.PromptLayer, 0, len(layers))
	for _, l := range layers {
		if l.IsActive {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func activeRules(rules []types.Rule) []types.Rule {
	out := make([]types.Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

func activeExamples(examples []types.Example) []types.Example {
	out := make([]types.Example, 0, len(examples))
	for _, e := range examples {
		if e.IsActive {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// rulesBlock emits one line per rule, grouped by type in the fixed
// must_do, must_not, prefer, avoid order. Severity is editor metadata and
// never changes the output.
func rulesBlock(rules []types.Rule) string {
	if len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Rules\n")
	for _, rt := range types.RuleTypeOrder {
		for _, r := range rules {
			if r.Type != rt {
				continue
			}
			b.WriteString("\n")
			b.WriteString(rt.Prefix())
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(r.Content))
		}
	}
	return b.String()
}

// examplesBlock emits each example as a structured user/assistant turn.
// Explanations stay in the editor and never reach the artifact.
func examplesBlock(examples []types.Example) string {
	if len(examples) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Examples\n")
	for i, e := range examples {
		b.WriteString(fmt.Sprintf("\nExample %d:\nUser: %s\nAssistant: %s\n",
			i+1, strings.TrimSpace(e.UserInput), strings.TrimSpace(e.ExpectedOutput)))
	}
	return strings.TrimRight(b.String(), "\n")
}
