package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"agentfoundry/internal/types"
)

func testTemplate() *types.AgentTemplate {
	return &types.AgentTemplate{
		ID:         "tpl-1",
		Name:       "Helper",
		CorePrompt: "You are a helpful assistant.",
	}
}

func TestCompileRequiresCorePrompt(t *testing.T) {
	_, err := Compile(Input{})
	require.True(t, types.IsKind(err, types.KindValidation))

	_, err = Compile(Input{Template: &types.AgentTemplate{ID: "x"}})
	require.True(t, types.IsKind(err, types.KindValidation))
}

func TestCompileCoreOnly(t *testing.T) {
	res, err := Compile(Input{Template: testTemplate()})
	require.NoError(t, err)
	require.Equal(t, "You are a helpful assistant.\n", res.Prompt)
	require.Zero(t, res.Stats.Layers)
	require.Zero(t, res.Stats.Rules)
	require.Zero(t, res.Stats.Examples)
	require.Equal(t, len(res.Prompt), res.Stats.Bytes)
}

func TestCompileLayerOrdering(t *testing.T) {
	layers := []types.PromptLayer{
		{Type: types.LayerGuardrail, Content: "third", Priority: 30, IsActive: true},
		{Type: types.LayerSystem, Content: "first", Priority: 10, IsActive: true},
		{Type: types.LayerOutputFormat, Content: "second", Priority: 20, IsActive: true},
	}
	res, err := Compile(Input{Template: testTemplate(), Layers: layers})
	require.NoError(t, err)

	first := strings.Index(res.Prompt, "first")
	second := strings.Index(res.Prompt, "second")
	third := strings.Index(res.Prompt, "third")
	require.True(t, first < second && second < third,
		"layers must sort by ascending priority, got:\n%s", res.Prompt)
}

func TestCompileLayerTieBreakByInsertion(t *testing.T) {
	// Same priority: the order the caller supplies (creation order from the
	// store) must survive the sort.
	layers := []types.PromptLayer{
		{Type: types.LayerSystem, Content: "alpha", Priority: 5, IsActive: true},
		{Type: types.LayerSystem, Content: "beta", Priority: 5, IsActive: true},
	}
	res, err := Compile(Input{Template: testTemplate(), Layers: layers})
	require.NoError(t, err)
	require.True(t, strings.Index(res.Prompt, "alpha") < strings.Index(res.Prompt, "beta"))
}

func TestCompileTypeDoesNotReorder(t *testing.T) {
	// A guardrail with lower priority sorts before a system layer with a
	// higher one.
	layers := []types.PromptLayer{
		{Type: types.LayerSystem, Content: "late", Priority: 50, IsActive: true},
		{Type: types.LayerGuardrail, Content: "early", Priority: 1, IsActive: true},
	}
	res, err := Compile(Input{Template: testTemplate(), Layers: layers})
	require.NoError(t, err)
	require.True(t, strings.Index(res.Prompt, "early") < strings.Index(res.Prompt, "late"))
}

func TestCompileSkipsInactiveFragments(t *testing.T) {
	in := Input{
		Template: testTemplate(),
		Layers:   []types.PromptLayer{{Type: types.LayerSystem, Content: "hidden", IsActive: false}},
		Rules:    []types.Rule{{Type: types.RuleMustDo, Content: "hidden rule", IsActive: false}},
		Examples: []types.Example{{UserInput: "q", ExpectedOutput: "a", IsActive: false}},
	}
	res, err := Compile(in)
	require.NoError(t, err)
	require.NotContains(t, res.Prompt, "hidden")
	require.NotContains(t, res.Prompt, "## Rules")
	require.NotContains(t, res.Prompt, "## Examples")
}

func TestCompileRuleGrouping(t *testing.T) {
	// A must_not rule created after a prefer rule still compiles before it:
	// grouping follows the fixed type order, not creation order.
	rules := []types.Rule{
		{Type: types.RulePrefer, Content: "short answers", IsActive: true, SortOrder: 1},
		{Type: types.RuleMustNot, Content: "invent facts", IsActive: true, SortOrder: 2},
		{Type: types.RuleMustDo, Content: "cite sources", IsActive: true, SortOrder: 3},
		{Type: types.RuleAvoid, Content: "jargon", IsActive: true, SortOrder: 4},
	}
	res, err := Compile(Input{Template: testTemplate(), Rules: rules})
	require.NoError(t, err)

	mustDo := strings.Index(res.Prompt, "MUST: cite sources")
	mustNot := strings.Index(res.Prompt, "MUST NOT: invent facts")
	prefer := strings.Index(res.Prompt, "PREFER: short answers")
	avoid := strings.Index(res.Prompt, "AVOID: jargon")
	require.True(t, mustDo >= 0 && mustNot >= 0 && prefer >= 0 && avoid >= 0, res.Prompt)
	require.True(t, mustDo < mustNot && mustNot < prefer && prefer < avoid,
		"rule groups out of order:\n%s", res.Prompt)
	require.Equal(t, 4, res.Stats.Rules)
}

func TestCompileRulesWithinGroupFollowSortOrder(t *testing.T) {
	rules := []types.Rule{
		{Type: types.RuleMustDo, Content: "second directive", IsActive: true, SortOrder: 20},
		{Type: types.RuleMustDo, Content: "first directive", IsActive: true, SortOrder: 10},
	}
	res, err := Compile(Input{Template: testTemplate(), Rules: rules})
	require.NoError(t, err)
	require.True(t, strings.Index(res.Prompt, "first directive") < strings.Index(res.Prompt, "second directive"))
}

func TestCompileExamplesExcludeExplanation(t *testing.T) {
	examples := []types.Example{
		{UserInput: "What stack do you use?", ExpectedOutput: "TypeScript and Go.", Explanation: "internal reviewer note", IsActive: true, SortOrder: 1},
	}
	res, err := Compile(Input{Template: testTemplate(), Examples: examples})
	require.NoError(t, err)
	require.Contains(t, res.Prompt, "User: What stack do you use?")
	require.Contains(t, res.Prompt, "Assistant: TypeScript and Go.")
	require.NotContains(t, res.Prompt, "internal reviewer note")
}

func TestCompileDeterministic(t *testing.T) {
	in := Input{
		Template: testTemplate(),
		Layers: []types.PromptLayer{
			{Type: types.LayerGuardrail, Content: "guard", Priority: 2, IsActive: true},
			{Type: types.LayerSystem, Content: "sys", Priority: 1, IsActive: true},
		},
		Rules: []types.Rule{
			{Type: types.RuleMustDo, Content: "be concise", IsActive: true},
			{Type: types.RuleAvoid, Content: "filler", IsActive: true},
		},
		Examples: []types.Example{
			{UserInput: "hi", ExpectedOutput: "hello", IsActive: true},
		},
	}
	first, err := Compile(in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Compile(in)
		require.NoError(t, err)
		require.Equal(t, first.Prompt, again.Prompt, "compilation must be byte-identical")
		require.Equal(t, first.Stats, again.Stats)
	}
}

func TestCompileDoesNotMutateInput(t *testing.T) {
	layers := []types.PromptLayer{
		{Content: "b", Priority: 2, IsActive: true},
		{Content: "a", Priority: 1, IsActive: true},
	}
	_, err := Compile(Input{Template: testTemplate(), Layers: layers})
	require.NoError(t, err)
	require.Equal(t, "b", layers[0].Content, "caller's slice must keep its order")
}
