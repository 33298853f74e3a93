package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deniz-birlikci/deception-RL/pkg/eventlog"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/respparser"
)

// decision is the pure, concurrency-safe result of gatherDecision: the
// network round-trip (suspend-and-resume for the trainable policy, or an
// Opponent Adapter call) with no shared-state mutation. applyDecision
// folds it back into the owning agent's history and the shared event log,
// and must only ever run on the orchestrator's own goroutine.
type decision struct {
	promptText string
	target     model.ToolCallTarget
	output     model.ModelOutput
}

// gatherDecision builds the narrowed schema and action prompt for agentID,
// then performs the external round-trip: the suspension protocol for the
// trainable policy (spec 4.5.5), or a retried Opponent Adapter call
// otherwise. It reads agentID's history and the event log but writes
// neither, so concurrent callers (one per opponent in a discourse fan-out)
// never race.
func (o *Orchestrator) gatherDecision(ctx context.Context, ag *agentState, toolName string, eligibleIDs []string, guidance string) (decision, error) {
	decider := "opponent"
	if ag.Agent.IsPolicy {
		decider = "policy"
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.gather_decision",
		trace.WithAttributes(
			attribute.String("game_id", o.gameID),
			attribute.String("agent_id", ag.Agent.ID),
			attribute.String("tool_name", toolName),
			attribute.String("decider", decider),
		))
	defer span.End()
	start := time.Now()

	d, err := o.gatherDecisionTraced(ctx, ag, toolName, eligibleIDs, guidance, decider)
	o.metrics.RecordDecision(toolName, decider, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		o.metrics.RecordDecisionError(toolName, errorKind(err))
	}
	return d, err
}

func (o *Orchestrator) gatherDecisionTraced(ctx context.Context, ag *agentState, toolName string, eligibleIDs []string, guidance, decider string) (decision, error) {
	target, err := o.schemaBuilder.Build(toolName, eligibleIDs)
	if err != nil {
		return decision{}, err
	}

	history := o.histories[ag.Agent.ID]
	deltaEvents := o.log.SinceFor(ag.Agent.ID, history.LastSeenEventCounter)
	promptText := renderEventsAndGuidance(deltaEvents, guidance)

	if ag.Agent.IsPolicy {
		messages := renderMessages(o.systemPrompts[ag.Agent.ID], history)
		messages = append(messages, model.Message{Role: "user", Content: promptText})

		select {
		case o.output <- model.ModelInput{GameID: o.gameID, Messages: messages, ToolCall: &target}:
		case <-ctx.Done():
			return decision{}, ctx.Err()
		}

		select {
		case out, ok := <-o.input:
			if !ok {
				return decision{}, fmt.Errorf("orchestrator %s: input channel closed awaiting %s", o.gameID, ag.Agent.ID)
			}
			return decision{promptText: promptText, target: target, output: out}, nil
		case <-ctx.Done():
			return decision{}, ctx.Err()
		}
	}

	// The opponent sees its system prompt (rules, role, and — for
	// impostors — the fellow-impostor roster, spec 4.5.1 step 3), its
	// committed history, and this turn's not-yet-committed prompt, the
	// same three-part shape renderMessages builds for the trainable
	// policy; applyDecision appends the canonical copy of the new prompt
	// once a valid decision comes back.
	pending := make([]model.HistoryItem, 0, len(history.Items)+2)
	if systemPrompt := o.systemPrompts[ag.Agent.ID]; systemPrompt != "" {
		pending = append(pending, model.UserInput{Timestamp: time.Now(), UserMessage: systemPrompt})
	}
	pending = append(pending, history.Items...)
	pending = append(pending, model.UserInput{Timestamp: time.Now(), UserMessage: promptText})

	o.metrics.RecordOpponentCall(toolName)
	dec, err := ag.Opponent.Decide(ctx, pending, target)
	if err != nil {
		return decision{}, err
	}

	payload, marshalErr := json.Marshal(struct {
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
	}{ToolName: toolName, Arguments: dec.Arguments})
	if marshalErr != nil {
		return decision{}, fmt.Errorf("orchestrator %s: marshal opponent decision: %w", o.gameID, marshalErr)
	}

	output := model.ModelOutput{FunctionCallingJSON: string(payload), Reasoning: dec.Reasoning}
	return decision{promptText: promptText, target: target, output: output}, nil
}

// applyDecision parses a gathered decision through the external response
// parser, folds the resulting turn into agentID's history, and validates
// any agent-ID-valued argument against the live agent set. It mutates
// shared orchestrator state and must run serially.
func (o *Orchestrator) applyDecision(ag *agentState, d decision) (any, error) {
	resp, err := respparser.Parse(d.output, d.target)
	if err != nil {
		return nil, err
	}

	history := o.histories[ag.Agent.ID]
	history.Append(model.UserInput{Timestamp: time.Now(), UserMessage: d.promptText})
	history.Append(resp)
	var feedback []model.ToolResult
	for _, call := range resp.ToolCalls {
		feedback = append(feedback, model.ToolResult{ToolCallID: call.ID, Output: "OK"})
	}
	history.Append(model.ToolFeedback{Timestamp: time.Now(), Results: feedback})
	history.LastSeenEventCounter = o.log.NextCounter() - 1

	if err := o.validateAgentRefs(resp.HydratedTool); err != nil {
		return nil, err
	}
	return resp.HydratedTool, nil
}

// decide is the single-agent convenience path used everywhere outside
// discourse's concurrent fan-out: gather then immediately apply.
func (o *Orchestrator) decide(ctx context.Context, agentID, toolName string, eligibleIDs []string, guidance string) (any, error) {
	ag, ok := o.agents[agentID]
	if !ok {
		return nil, &AgentNotFoundError{AgentID: agentID}
	}
	d, err := o.gatherDecision(ctx, ag, toolName, eligibleIDs, guidance)
	if err != nil {
		return nil, err
	}
	return o.applyDecision(ag, d)
}

// renderMessages renders an agent's system prompt followed by its full
// history into the external wire message format, the same rendering used
// for both the trainable policy's ModelInput and (conceptually) opponent
// LLM calls.
func renderMessages(systemPrompt string, history *model.AgentHistory) []model.Message {
	messages := make([]model.Message, 0, len(history.Items)+1)
	if systemPrompt != "" {
		messages = append(messages, model.Message{Role: "system", Content: systemPrompt})
	}
	for _, item := range history.Items {
		switch v := item.(type) {
		case model.UserInput:
			messages = append(messages, model.Message{Role: "user", Content: v.UserMessage})
		case model.AssistantResponse:
			content := ""
			if v.Reasoning != nil {
				content = *v.Reasoning
			}
			var toolCallID, name string
			if len(v.ToolCalls) > 0 {
				toolCallID = v.ToolCalls[0].ID
				name = v.ToolCalls[0].Name
			}
			messages = append(messages, model.Message{Role: "assistant", Content: content, ToolCallID: toolCallID, Name: name})
		case model.ToolFeedback:
			for _, r := range v.Results {
				messages = append(messages, model.Message{Role: "tool", Content: r.Output, ToolCallID: r.ToolCallID})
			}
		}
	}
	return messages
}

// renderEventsAndGuidance renders the event delta an agent hasn't yet seen
// plus the action-specific guidance into one action prompt, the Go
// equivalent of _build_prompt_for_agent's public/private event sections in
// the source engine, scoped to only the new events since this agent's
// last decision.
func renderEventsAndGuidance(deltaEvents []eventlog.Event, guidance string) string {
	text := "=== NEW EVENTS ===\n"
	if len(deltaEvents) == 0 {
		text += "None.\n"
	}
	for _, e := range deltaEvents {
		text += "- " + describeEvent(e) + "\n"
	}
	text += "=== ACTION REQUIRED ===\n" + guidance + "\n"
	return text
}

func describeEvent(e eventlog.Event) string {
	switch e.Kind {
	case eventlog.KindNominationProposed:
		return fmt.Sprintf("%s nominated %s as First Mate.", e.CaptainID, e.NominatedAgentID)
	case eventlog.KindVote:
		return fmt.Sprintf("%s voted %t.", e.VoterID, e.VoteChoice)
	case eventlog.KindSpeech:
		if e.DirectedToAgentID != "" {
			return fmt.Sprintf("%s said (to %s): %s", e.SpeakerID, e.DirectedToAgentID, e.SpeechText)
		}
		return fmt.Sprintf("%s said: %s", e.SpeakerID, e.SpeechText)
	case eventlog.KindDirectedAnswer:
		return fmt.Sprintf("%s answered: %s", e.AnswererID, e.AnswerText)
	case eventlog.KindPolicyResolved:
		if e.ResolvedByAgentID == "" {
			return fmt.Sprintf("A %s card was auto-resolved after three failed votes.", e.ResolvedCard)
		}
		return fmt.Sprintf("%s played a %s card.", e.ResolvedByAgentID, e.ResolvedCard)
	case eventlog.KindCaptainCardDraw:
		return fmt.Sprintf("You drew %v and discarded %s.", e.Drawn, e.Discarded)
	case eventlog.KindFirstMateCardReceive:
		return fmt.Sprintf("You received %v from the Captain.", e.Received)
	default:
		return "unknown event"
	}
}
