package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
)

// randomBot is an opponent.Client that picks uniformly among the narrowed
// schema's enumerated agent IDs, draws random values for card_index and
// choice, and fills free-text fields (question_or_statement, response)
// with fixed canned text. It exists purely
// for local smoke-testing full rollouts end to end without any real LLM
// in the loop.
type randomBot struct {
	rng *rand.Rand
}

func (b *randomBot) Decide(ctx context.Context, history []model.HistoryItem, target model.ToolCallTarget) (opponent.Decision, error) {
	args := map[string]any{"reasoning": "rollout"}

	switch target.Name {
	case model.ToolPickFirstMate:
		ids := enumStrings(target, "agent_id")
		if len(ids) == 0 {
			return opponent.Decision{}, fmt.Errorf("randomBot: no eligible agent_id for %s", target.Name)
		}
		args["agent_id"] = ids[b.rng.Intn(len(ids))]
	case model.ToolVoteYesNo:
		args["choice"] = b.rng.Intn(2) == 0
	case model.ToolCaptainDiscardCard:
		args["card_index"] = b.rng.Intn(3)
	case model.ToolFirstMatePlayCard:
		args["card_index"] = b.rng.Intn(2)
	case model.ToolAskSpeak:
		if b.rng.Float64() < 0.4 {
			args["question_or_statement"] = "I have nothing to report."
		}
		if ids := enumStrings(target, "ask_directed_question_to_agent_id"); len(ids) > 0 && b.rng.Float64() < 0.3 {
			args["ask_directed_question_to_agent_id"] = ids[b.rng.Intn(len(ids))]
		}
	case model.ToolAnswerDirectedQuestion:
		args["response"] = "No comment."
	case model.ToolChooseAgentToEject:
		if ids := enumStrings(target, "agent_id"); len(ids) > 0 {
			args["agent_id"] = ids[b.rng.Intn(len(ids))]
		}
	default:
		return opponent.Decision{}, fmt.Errorf("randomBot: unhandled tool %s", target.Name)
	}

	return opponent.Decision{ToolName: target.Name, Arguments: args}, nil
}

// enumStrings extracts a narrowed schema property's string enum values,
// if present.
func enumStrings(target model.ToolCallTarget, field string) []string {
	fn, ok := target.OpenAISchema["function"].(map[string]any)
	if !ok {
		return nil
	}
	params, ok := fn["parameters"].(map[string]any)
	if !ok {
		return nil
	}
	properties, ok := params["properties"].(map[string]any)
	if !ok {
		return nil
	}
	prop, ok := properties[field].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := prop["enum"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
