package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/deck"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
)

// scriptedClient is a deterministic opponent.Client: it always nominates
// the first eligible agent, approves every vote, discards/plays the
// card at index 0, and declines to speak. Driving every seat with one
// lets a whole game run to completion without any channel suspension.
type scriptedClient struct{}

func (scriptedClient) Decide(ctx context.Context, history []model.HistoryItem, target model.ToolCallTarget) (opponent.Decision, error) {
	switch target.Name {
	case model.ToolPickFirstMate:
		ids := enumIDs(target, "agent_id")
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{
			"reasoning": "ok", "agent_id": ids[0],
		}}, nil
	case model.ToolVoteYesNo:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "choice": true}}, nil
	case model.ToolCaptainDiscardCard:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "card_index": 0}}, nil
	case model.ToolFirstMatePlayCard:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "card_index": 0}}, nil
	case model.ToolAskSpeak:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok"}}, nil
	case model.ToolAnswerDirectedQuestion:
		return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "response": "no comment"}}, nil
	default:
		return opponent.Decision{}, fmt.Errorf("scriptedClient: unhandled tool %s", target.Name)
	}
}

// nominatingClient always prefers to nominate preferredID when it appears
// in the eligible enum, falling back to the first eligible agent
// otherwise. Everything else behaves like scriptedClient.
type nominatingClient struct {
	preferredID string
}

func (c nominatingClient) Decide(ctx context.Context, history []model.HistoryItem, target model.ToolCallTarget) (opponent.Decision, error) {
	if target.Name != model.ToolPickFirstMate {
		return scriptedClient{}.Decide(ctx, history, target)
	}
	enum := enumIDs(target, "agent_id")
	nominee := enum[0]
	for _, id := range enum {
		if id == c.preferredID {
			nominee = id
			break
		}
	}
	return opponent.Decision{ToolName: target.Name, Arguments: map[string]any{"reasoning": "ok", "agent_id": nominee}}, nil
}

func enumIDs(target model.ToolCallTarget, field string) []string {
	fn := target.OpenAISchema["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	properties := params["properties"].(map[string]any)
	prop := properties[field].(map[string]any)
	raw := prop["enum"].([]any)
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

func allBotRoleSlots(opponents ...opponent.Client) []RoleSlot {
	ids := []string{"a1", "a2", "a3", "a4", "a5"}
	slots := make([]RoleSlot, len(ids))
	for i, id := range ids {
		slots[i] = RoleSlot{AgentID: id, Opponent: opponents[i]}
	}
	return slots
}

func uniformScriptedSlots() []RoleSlot {
	return allBotRoleSlots(scriptedClient{}, scriptedClient{}, scriptedClient{}, scriptedClient{}, scriptedClient{})
}

func standardDeck(seed int64) *deck.Deck {
	return deck.New(deck.Config{TotalSabotage: 11, TotalSecurity: 6, RNG: rand.New(rand.NewSource(seed))})
}

func TestOrchestrator_AllBotGameConservesDeckAndTerminatesOnce(t *testing.T) {
	out := make(chan model.ModelInput, 4)
	in := make(chan model.ModelOutput, 4)
	d := standardDeck(7)

	cfg := Config{
		GameID:         "g1",
		Deck:           d,
		RoleSlots:      uniformScriptedSlots(),
		SecurityTarget: 5,
		SabotageTarget: 6,
		PromotionThreshold: 3,
		RNG:            rand.New(rand.NewSource(7)),
		Output:         out,
		Input:          in,
	}

	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.Run(ctx)

	msg := <-out
	require.NotNil(t, msg.Terminal)
	assert.Len(t, out, 0, "exactly one terminal ModelInput should be emitted")

	total := d.TotalCards()
	assert.Equal(t, total, d.Remaining()+d.DiscardCount()+o.securityTrack+o.sabotageTrack)
	assert.True(t, o.securityTrack >= cfg.SecurityTarget || o.sabotageTrack >= cfg.SabotageTarget || o.promotionWin())
}

func TestOrchestrator_WinDeterminismAcrossIdenticalSeeds(t *testing.T) {
	build := func() model.TerminalState {
		out := make(chan model.ModelInput, 4)
		in := make(chan model.ModelOutput, 4)
		cfg := Config{
			GameID:             "g-seeded",
			Deck:               standardDeck(42),
			RoleSlots:          uniformScriptedSlots(),
			SecurityTarget:     5,
			SabotageTarget:     6,
			PromotionThreshold: 3,
			RNG:                rand.New(rand.NewSource(42)),
			Output:             out,
			Input:              in,
		}
		o, err := New(cfg)
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Run(ctx)
		return *(<-out).Terminal
	}

	first := build()
	second := build()

	assert.Equal(t, first.WinningTeam, second.WinningTeam)
	firstIDs := make([]string, len(first.Winners))
	for i, a := range first.Winners {
		firstIDs[i] = a.ID
	}
	secondIDs := make([]string, len(second.Winners))
	for i, a := range second.Winners {
		secondIDs[i] = a.ID
	}
	assert.ElementsMatch(t, firstIDs, secondIDs)
}

func TestOrchestrator_PromotionWinWithoutReachingSabotageTarget(t *testing.T) {
	out := make(chan model.ModelInput, 4)
	in := make(chan model.ModelOutput, 4)
	// An all-sabotage deck guarantees every resolved legislative card is
	// Sabotage, so the only way the game can end is the promotion win.
	d := deck.New(deck.Config{TotalSabotage: 30, TotalSecurity: 0, RNG: rand.New(rand.NewSource(3))})

	cfg := Config{
		GameID:             "g-promotion",
		Deck:               d,
		SecurityTarget:     100,
		SabotageTarget:     100,
		PromotionThreshold: 1,
		RNG:                rand.New(rand.NewSource(3)),
		Output:             out,
		Input:              in,
	}

	// Determine the MasterImpostor's agent ID by constructing the
	// orchestrator once with placeholder opponents, then rebuild with
	// bots scripted to nominate it whenever eligible.
	probe := cfg
	probe.RoleSlots = uniformScriptedSlots()
	probeOrch, err := New(probe)
	require.NoError(t, err)
	var masterImpostorID string
	for id, st := range probeOrch.agents {
		if st.Agent.Role == model.RoleMasterImpostor {
			masterImpostorID = id
		}
	}
	require.NotEmpty(t, masterImpostorID)

	cfg.RoleSlots = allBotRoleSlots(
		nominatingClient{preferredID: masterImpostorID},
		nominatingClient{preferredID: masterImpostorID},
		nominatingClient{preferredID: masterImpostorID},
		nominatingClient{preferredID: masterImpostorID},
		nominatingClient{preferredID: masterImpostorID},
	)
	// Reuse a fresh RNG with the same seed so role assignment matches the
	// probe run's (New consumes RNG draws deterministically from a fresh
	// source each time).
	cfg.RNG = rand.New(rand.NewSource(3))
	d2 := deck.New(deck.Config{TotalSabotage: 30, TotalSecurity: 0, RNG: rand.New(rand.NewSource(3))})
	cfg.Deck = d2

	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.Run(ctx)

	msg := <-out
	require.NotNil(t, msg.Terminal)
	require.NotNil(t, msg.Terminal.WinningTeam)
	assert.Equal(t, model.TeamImpostor, *msg.Terminal.WinningTeam)
	assert.Less(t, o.sabotageTrack, cfg.SabotageTarget)
	assert.Equal(t, masterImpostorID, o.electedFirstMateID)
}

func TestOrchestrator_ProtocolErrorBecomesNegativeRewardTerminal(t *testing.T) {
	out := make(chan model.ModelInput, 4)
	in := make(chan model.ModelOutput, 4)

	slots := allBotRoleSlots(scriptedClient{}, scriptedClient{}, scriptedClient{}, scriptedClient{}, scriptedClient{})
	slots[0] = RoleSlot{AgentID: slots[0].AgentID, IsPolicy: true}

	cfg := Config{
		GameID:             "g-proto-err",
		Deck:               standardDeck(11),
		RoleSlots:          slots,
		SecurityTarget:     5,
		SabotageTarget:     6,
		PromotionThreshold: 3,
		RNG:                rand.New(rand.NewSource(11)),
		Output:             out,
		Input:              in,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	first := <-out
	require.NotNil(t, first.ToolCall, "first message to the trainable policy should be a decision request")

	in <- model.ModelOutput{FunctionCallingJSON: "{broken"}

	second := <-out
	require.NotNil(t, second.Terminal)
	assert.Equal(t, -1.0, second.Terminal.Reward)
	assert.Empty(t, second.Terminal.Winners)
	assert.Nil(t, second.Terminal.WinningTeam)
	assert.Equal(t, "protocol_error", second.Terminal.Metadata["error_kind"])

	<-done
	assert.Len(t, out, 0)
}
