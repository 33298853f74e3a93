// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toolschema reflects the closed tool vocabulary's typed Go
// argument structs into narrowed, OpenAI-style function-call schemas,
// using invopop/jsonschema the same way the teacher's functiontool package
// derives schemas from struct tags.
package toolschema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// descriptions holds the per-tool function description shown to the
// decider, grounded on the source game's OPENAI_TOOLS literal schemas.
var descriptions = map[string]string{
	model.ToolPickFirstMate: "As the Captain, nominate a player to be First Mate for this round. " +
		"The nominated player must be eligible (not term-limited from the previous government). " +
		"After nomination, all players will vote on whether to approve this government.",
	model.ToolVoteYesNo: "Vote on whether to approve the proposed government (Captain and First Mate pair). " +
		"Vote true to approve, false to reject. All players vote simultaneously.",
	model.ToolCaptainDiscardCard: "As Captain, you have drawn three policy cards and must discard one. " +
		"The remaining two are passed to the First Mate, who chooses which one to play.",
	model.ToolFirstMatePlayCard: "As First Mate, you have received two policy cards from the Captain and must " +
		"choose one to play. The other is discarded. The played policy is revealed to all players.",
	model.ToolAskSpeak: "Indicate whether you want to speak during the discourse phase. Optionally provide a " +
		"question_or_statement, and/or direct a question at another agent.",
	model.ToolAnswerDirectedQuestion: "Respond to a question or statement that was directed at you during the " +
		"discourse phase.",
	model.ToolChooseAgentToEject: "As Captain with executive power, choose a player to eject, or null to decline.",
}

// agentIDField names the field within each tool's args struct that should
// be narrowed to the eligible-agent enum, and whether null is an allowed
// choice (for the optional-target tools).
type agentIDField struct {
	name       string
	allowsNull bool
}

var narrowedFields = map[string]agentIDField{
	model.ToolPickFirstMate:      {name: "agent_id", allowsNull: false},
	model.ToolAskSpeak:           {name: "ask_directed_question_to_agent_id", allowsNull: true},
	model.ToolChooseAgentToEject: {name: "agent_id", allowsNull: true},
}

// Builder produces narrowed tool schemas on demand. It holds no mutable
// state; schema reflection is cheap and regenerated per call so narrowing
// never leaks between decisions.
type Builder struct{}

// NewBuilder constructs a Builder.
func NewBuilder() *Builder { return &Builder{} }

// Build returns the narrowed OpenAI-style function-call schema for
// toolName. eligibleAgentIDs narrows any agent-id-typed property for tools
// that take one; it is ignored for tools with no such property.
func (b *Builder) Build(toolName string, eligibleAgentIDs []string) (model.ToolCallTarget, error) {
	params, err := b.parametersFor(toolName)
	if err != nil {
		return model.ToolCallTarget{}, err
	}

	if narrow, ok := narrowedFields[toolName]; ok {
		if err := narrowEnum(params, narrow.name, eligibleAgentIDs, narrow.allowsNull); err != nil {
			return model.ToolCallTarget{}, fmt.Errorf("narrowing %s.%s: %w", toolName, narrow.name, err)
		}
	}

	schema := map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        toolName,
			"description": descriptions[toolName],
			"strict":      true,
			"parameters":  params,
		},
	}

	return model.ToolCallTarget{Name: toolName, OpenAISchema: schema}, nil
}

func (b *Builder) parametersFor(toolName string) (map[string]any, error) {
	switch toolName {
	case model.ToolPickFirstMate:
		return reflectParams[model.PickFirstMateArgs]()
	case model.ToolVoteYesNo:
		return reflectParams[model.VoteYesNoArgs]()
	case model.ToolCaptainDiscardCard:
		return reflectParams[model.CaptainDiscardCardArgs]()
	case model.ToolFirstMatePlayCard:
		return reflectParams[model.FirstMatePlayCardArgs]()
	case model.ToolAskSpeak:
		return reflectParams[model.AskSpeakArgs]()
	case model.ToolAnswerDirectedQuestion:
		return reflectParams[model.AnswerDirectedQuestionArgs]()
	case model.ToolChooseAgentToEject:
		return reflectParams[model.ChooseAgentToEjectArgs]()
	default:
		return nil, &model.ErrUnknownTool{Name: toolName}
	}
}

// reflectParams generates a JSON-schema "parameters" object from a typed
// Go argument struct's json/jsonschema tags.
func reflectParams[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	delete(params, "$schema")
	delete(params, "$id")
	params["additionalProperties"] = false

	return params, nil
}

// narrowEnum rewrites properties[fieldName]'s enum to eligibleIDs (plus nil
// when allowsNull), mutating params in place.
func narrowEnum(params map[string]any, fieldName string, eligibleIDs []string, allowsNull bool) error {
	properties, ok := params["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("schema has no properties object")
	}
	field, ok := properties[fieldName].(map[string]any)
	if !ok {
		return fmt.Errorf("field %q not present in schema", fieldName)
	}

	enum := make([]any, 0, len(eligibleIDs)+1)
	for _, id := range eligibleIDs {
		enum = append(enum, id)
	}
	if allowsNull {
		enum = append(enum, nil)
	}
	field["enum"] = enum
	return nil
}
