package respparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/toolschema"
)

func voteTarget(t *testing.T) model.ToolCallTarget {
	t.Helper()
	target, err := toolschema.NewBuilder().Build(model.ToolVoteYesNo, nil)
	require.NoError(t, err)
	return target
}

func TestParse_ValidVote(t *testing.T) {
	out := model.ModelOutput{FunctionCallingJSON: `{"tool_name":"vote_yes_no","arguments":{"reasoning":"trust them","choice":true}}`}

	resp, err := Parse(out, voteTarget(t))
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, model.ToolVoteYesNo, resp.ToolCalls[0].Name)

	args, ok := resp.HydratedTool.(*model.VoteYesNoArgs)
	require.True(t, ok)
	assert.True(t, args.Choice)
}

func TestParse_InvalidJSON(t *testing.T) {
	out := model.ModelOutput{FunctionCallingJSON: "{broken"}

	_, err := Parse(out, voteTarget(t))
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestParse_WrongToolName(t *testing.T) {
	out := model.ModelOutput{FunctionCallingJSON: `{"tool_name":"pick_first_mate","arguments":{"reasoning":"x","agent_id":"a2"}}`}

	_, err := Parse(out, voteTarget(t))
	require.Error(t, err)
}

func TestParse_MissingRequiredField(t *testing.T) {
	out := model.ModelOutput{FunctionCallingJSON: `{"tool_name":"vote_yes_no","arguments":{"choice":true}}`}

	_, err := Parse(out, voteTarget(t))
	require.Error(t, err)
}

func TestParse_EnumViolationOnNarrowedAgentID(t *testing.T) {
	target, err := toolschema.NewBuilder().Build(model.ToolPickFirstMate, []string{"a2", "a3"})
	require.NoError(t, err)

	out := model.ModelOutput{FunctionCallingJSON: `{"tool_name":"pick_first_mate","arguments":{"reasoning":"x","agent_id":"a5"}}`}

	_, err = Parse(out, target)
	require.Error(t, err)
}

func TestParse_CardIndexWithinBounds(t *testing.T) {
	target, err := toolschema.NewBuilder().Build(model.ToolFirstMatePlayCard, nil)
	require.NoError(t, err)

	out := model.ModelOutput{FunctionCallingJSON: `{"tool_name":"first_mate_play_card","arguments":{"reasoning":"x","card_index":1}}`}

	resp, err := Parse(out, target)
	require.NoError(t, err)
	args := resp.HydratedTool.(*model.FirstMatePlayCardArgs)
	assert.Equal(t, 1, args.CardIndex)
}
