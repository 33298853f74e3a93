package toolschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

func TestBuilder_InjectsReasoningAsRequired(t *testing.T) {
	b := NewBuilder()
	target, err := b.Build(model.ToolVoteYesNo, nil)
	require.NoError(t, err)

	fn := target.OpenAISchema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	required := params["required"].([]any)

	assert.Contains(t, required, "reasoning")
	assert.Equal(t, model.ToolVoteYesNo, target.Name)
}

func TestBuilder_NarrowsEligibleAgentIDs(t *testing.T) {
	b := NewBuilder()
	target, err := b.Build(model.ToolPickFirstMate, []string{"a2", "a3"})
	require.NoError(t, err)

	fn := target.OpenAISchema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	properties := params["properties"].(map[string]any)
	agentID := properties["agent_id"].(map[string]any)

	assert.ElementsMatch(t, []any{"a2", "a3"}, agentID["enum"])
}

func TestBuilder_NullableNarrowedFieldAllowsNil(t *testing.T) {
	b := NewBuilder()
	target, err := b.Build(model.ToolChooseAgentToEject, []string{"a1"})
	require.NoError(t, err)

	fn := target.OpenAISchema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	properties := params["properties"].(map[string]any)
	agentID := properties["agent_id"].(map[string]any)

	assert.Contains(t, agentID["enum"], nil)
	assert.Contains(t, agentID["enum"], "a1")
}

func TestBuilder_UnknownToolErrors(t *testing.T) {
	b := NewBuilder()
	_, err := b.Build("not-a-real-tool", nil)
	require.Error(t, err)

	var unknown *model.ErrUnknownTool
	assert.ErrorAs(t, err, &unknown)
}

func TestBuilder_CardIndexBounds(t *testing.T) {
	b := NewBuilder()

	target, err := b.Build(model.ToolCaptainDiscardCard, nil)
	require.NoError(t, err)
	fn := target.OpenAISchema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	properties := params["properties"].(map[string]any)
	cardIndex := properties["card_index"].(map[string]any)

	assert.EqualValues(t, 0, cardIndex["minimum"])
	assert.EqualValues(t, 2, cardIndex["maximum"])
}
