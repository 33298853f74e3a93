package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/deck"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
	"github.com/deniz-birlikci/deception-RL/pkg/orchestrator"
)

type passiveBot struct{}

func (passiveBot) Decide(ctx context.Context, history []model.HistoryItem, target model.ToolCallTarget) (opponent.Decision, error) {
	switch target.Name {
	case model.ToolPickFirstMate:
		fn := target.OpenAISchema["function"].(map[string]any)
		params := fn["parameters"].(map[string]any)
		properties := params["properties"].(map[string]any)
		enum := properties["agent_id"].(map[string]any)["enum"].([]any)
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "agent_id": enum[0]}}, nil
	case model.ToolVoteYesNo:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "choice": true}}, nil
	case model.ToolCaptainDiscardCard, model.ToolFirstMatePlayCard:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "card_index": 0}}, nil
	default:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok"}}, nil
	}
}

func testGameConfig(policySeat bool) orchestrator.Config {
	ids := []string{"a1", "a2", "a3", "a4", "a5"}
	slots := make([]orchestrator.RoleSlot, len(ids))
	for i, id := range ids {
		if policySeat && i == 0 {
			slots[i] = orchestrator.RoleSlot{AgentID: id, IsPolicy: true}
			continue
		}
		slots[i] = orchestrator.RoleSlot{AgentID: id, Opponent: passiveBot{}}
	}
	return orchestrator.Config{
		Deck:               deck.New(deck.Config{TotalSabotage: 11, TotalSecurity: 6, RNG: rand.New(rand.NewSource(1))}),
		RoleSlots:          slots,
		SecurityTarget:     5,
		SabotageTarget:     6,
		PromotionThreshold: 3,
		RNG:                rand.New(rand.NewSource(1)),
	}
}

func TestEngine_CreateReturnsFirstDecisionForPolicySeat(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := e.Create(ctx, "game-1", testGameConfig(true))
	require.NoError(t, err)
	assert.NotNil(t, msg.ToolCall)
	assert.True(t, e.GameExists("game-1"))

	role, hasPolicy, err := e.GetTrainableRole("game-1")
	require.NoError(t, err)
	assert.True(t, hasPolicy)
	assert.True(t, role.Valid())
}

func TestEngine_ExecuteUnknownGameFails(t *testing.T) {
	e := New()
	_, err := e.Execute(context.Background(), "nope", model.ModelOutput{})
	require.Error(t, err)
	var notFound *GameNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestEngine_AllBotGameTerminatesAndCleansUpRegistry(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := e.Create(ctx, "game-2", testGameConfig(false))
	require.NoError(t, err)
	require.NotNil(t, msg.Terminal)
	assert.False(t, e.GameExists("game-2"))

	_, err = e.Execute(ctx, "game-2", model.ModelOutput{})
	require.Error(t, err)
}

func TestEngine_FinalizeCancelsAndRemoves(t *testing.T) {
	e := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := e.Create(ctx, "game-3", testGameConfig(true))
	require.NoError(t, err)
	require.NoError(t, e.Finalize("game-3"))
	assert.False(t, e.GameExists("game-3"))
}
