// Package respparser decodes a trainer or opponent ModelOutput into a
// hydrated model.AssistantResponse, grounded verbatim on
// ExternalAgentResponseParser.parse in the source game: JSON-decode the
// function-calling payload, require the tool name to match what was
// offered, and validate the arguments against the narrowed schema before
// hydrating them into a typed Go struct.
package respparser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// ProtocolError is raised for any malformed ModelOutput: invalid JSON, a
// missing tool_name, a tool_name that doesn't match what was offered, or
// arguments failing the narrowed schema. The orchestrator converts every
// ProtocolError into a terminal state with negative reward (spec ch. 7).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

type functionCallingPayload struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// Parse decodes output against expected (the ToolCallTarget most recently
// offered to this decider) and returns the hydrated assistant response.
func Parse(output model.ModelOutput, expected model.ToolCallTarget) (model.AssistantResponse, error) {
	var payload functionCallingPayload
	if err := json.Unmarshal([]byte(output.FunctionCallingJSON), &payload); err != nil {
		return model.AssistantResponse{}, &ProtocolError{Reason: fmt.Sprintf("invalid JSON response: %v", err)}
	}

	if payload.ToolName == "" {
		return model.AssistantResponse{}, &ProtocolError{Reason: "response must contain 'tool_name'"}
	}
	if payload.ToolName != expected.Name {
		return model.AssistantResponse{}, &ProtocolError{
			Reason: fmt.Sprintf("tool_name %q does not match offered tool %q", payload.ToolName, expected.Name),
		}
	}
	if payload.Arguments == nil {
		payload.Arguments = map[string]any{}
	}

	params, err := parametersOf(expected.OpenAISchema)
	if err != nil {
		return model.AssistantResponse{}, &ProtocolError{Reason: err.Error()}
	}
	if err := validateArguments(params, payload.Arguments); err != nil {
		return model.AssistantResponse{}, &ProtocolError{Reason: err.Error()}
	}

	hydrated, err := hydrate(payload.ToolName, payload.Arguments)
	if err != nil {
		return model.AssistantResponse{}, &ProtocolError{Reason: err.Error()}
	}

	call := model.ToolCall{ID: uuid.NewString(), Name: payload.ToolName, Input: payload.Arguments}

	return model.AssistantResponse{
		Timestamp:    time.Now(),
		Reasoning:    output.Reasoning,
		ToolCalls:    []model.ToolCall{call},
		HydratedTool: hydrated,
	}, nil
}

func parametersOf(openAISchema map[string]any) (map[string]any, error) {
	fn, ok := openAISchema["function"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("offered schema missing 'function'")
	}
	params, ok := fn["parameters"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("offered schema missing 'function.parameters'")
	}
	return params, nil
}

// validateArguments checks that every required property is present and
// that any enum-constrained property's value falls inside its enum.
func validateArguments(params map[string]any, args map[string]any) error {
	if required, ok := params["required"].([]any); ok {
		for _, r := range required {
			name, _ := r.(string)
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}

	properties, _ := params["properties"].(map[string]any)
	for name, rawProp := range properties {
		prop, ok := rawProp.(map[string]any)
		if !ok {
			continue
		}
		value, present := args[name]
		if !present {
			continue
		}

		if enum, hasEnum := prop["enum"].([]any); hasEnum {
			if !enumContains(enum, value) {
				return fmt.Errorf("argument %q value %v is not in the allowed enum", name, value)
			}
		}

		if err := validateNumericBounds(name, prop, value); err != nil {
			return err
		}
	}
	return nil
}

// validateNumericBounds enforces a property's "minimum"/"maximum" schema
// constraints (card_index bounds, principally) against a decoded JSON
// number, which arrives as a float64 regardless of the Go struct's int type.
func validateNumericBounds(name string, prop map[string]any, value any) error {
	num, ok := value.(float64)
	if !ok {
		return nil
	}
	if min, ok := prop["minimum"].(float64); ok && num < min {
		return fmt.Errorf("argument %q value %v is below minimum %v", name, num, min)
	}
	if max, ok := prop["maximum"].(float64); ok && num > max {
		return fmt.Errorf("argument %q value %v is above maximum %v", name, num, max)
	}
	return nil
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if candidate == nil && value == nil {
			return true
		}
		if fmt.Sprintf("%v", candidate) == fmt.Sprintf("%v", value) && candidate != nil {
			return true
		}
	}
	return false
}

// hydrate converts the raw argument map into the tool's typed Go struct,
// matching ExternalAgentResponseParser._hydrate_tool's tool_map dispatch.
func hydrate(toolName string, args map[string]any) (any, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}

	var target any
	switch toolName {
	case model.ToolPickFirstMate:
		target = &model.PickFirstMateArgs{}
	case model.ToolVoteYesNo:
		target = &model.VoteYesNoArgs{}
	case model.ToolCaptainDiscardCard:
		target = &model.CaptainDiscardCardArgs{}
	case model.ToolFirstMatePlayCard:
		target = &model.FirstMatePlayCardArgs{}
	case model.ToolAskSpeak:
		target = &model.AskSpeakArgs{}
	case model.ToolAnswerDirectedQuestion:
		target = &model.AnswerDirectedQuestionArgs{}
	case model.ToolChooseAgentToEject:
		target = &model.ChooseAgentToEjectArgs{}
	default:
		return nil, &model.ErrUnknownTool{Name: toolName}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("unmarshal arguments for %s: %w", toolName, err)
	}
	return target, nil
}
