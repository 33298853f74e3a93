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

// Package model defines the shared data model for the game engine: roles,
// agents, policy cards, and the wire-level types exchanged with the
// external trainer and with opponent LLM clients.
package model

import "fmt"

// Team is the side an agent's Role belongs to.
type Team string

const (
	TeamCrewmate Team = "crewmate"
	TeamImpostor Team = "impostor"
)

// Role is assigned once at game setup and never changes.
type Role string

const (
	RoleCrewmate       Role = "crewmate"
	RoleImpostor       Role = "impostor"
	RoleMasterImpostor Role = "master_impostor"
)

// Team returns the side this role plays for.
func (r Role) Team() Team {
	if r == RoleCrewmate {
		return TeamCrewmate
	}
	return TeamImpostor
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCrewmate, RoleImpostor, RoleMasterImpostor:
		return true
	default:
		return false
	}
}

// Agent is a fixed player slot. Agents are created at setup and never
// destroyed; ejection/death is not modelled.
type Agent struct {
	// ID is the stable identifier used throughout events, histories and
	// tool-schema eligibility enums.
	ID string

	// Role is this agent's assigned role for the game.
	Role Role

	// IsPolicy marks the one trainable-policy slot in the game, if any.
	IsPolicy bool

	// OpponentHandle is an opaque reference to the external LLM-backed
	// opponent driving this agent. Empty when IsPolicy is true.
	OpponentHandle string
}

// PolicyCard is one of the two card faces in the deck.
type PolicyCard string

const (
	CardSecurity PolicyCard = "security"
	CardSabotage PolicyCard = "sabotage"
)

func (c PolicyCard) String() string { return string(c) }

// ToolCallTarget names the single tool a decider is allowed to invoke next,
// together with its narrowed OpenAI-style function schema.
type ToolCallTarget struct {
	Name         string
	OpenAISchema map[string]any
}

// Message is one rendered entry of a ModelInput's message list.
type Message struct {
	Role       string // "system" | "user" | "assistant" | "tool"
	Content    string
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// TerminalState is the final outcome of a completed game.
type TerminalState struct {
	GameID           string
	Winners          []Agent
	WinningTeam      *Team
	Reward           float64
	TrainableAgentID string
	Metadata         map[string]any
}

// ModelInput is pushed to the trainer at every decision point for the
// trainable policy, and exactly once more at game termination. Exactly one
// of ToolCall and Terminal is non-nil.
type ModelInput struct {
	GameID   string
	Messages []Message
	ToolCall *ToolCallTarget
	Terminal *TerminalState
}

// ModelOutput is the trainer's response to a ModelInput carrying a ToolCall.
type ModelOutput struct {
	FunctionCallingJSON string
	Reasoning           *string
}

// The closed tool vocabulary. Every schema built for these names carries a
// required "reasoning" string property, declared first on each *Args
// struct below. The built schema holds its properties in a Go map, so when
// it is serialized the properties appear in alphabetical order, not in
// declaration order.
const (
	ToolPickFirstMate          = "pick_first_mate"
	ToolVoteYesNo              = "vote_yes_no"
	ToolCaptainDiscardCard     = "captain_discard_card"
	ToolFirstMatePlayCard      = "first_mate_play_card"
	ToolAskSpeak               = "ask_speak"
	ToolAnswerDirectedQuestion = "answer_directed_question"
	ToolChooseAgentToEject     = "choose_agent_to_eject"
)

// PickFirstMateArgs is the captain's nomination decision.
type PickFirstMateArgs struct {
	Reasoning string `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	AgentID   string `json:"agent_id" jsonschema:"required,description=The unique identifier of the agent/player you nominate as First Mate. Must be an eligible player."`
}

// VoteYesNoArgs is a single agent's vote on the proposed government.
type VoteYesNoArgs struct {
	Reasoning string `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	Choice    bool   `json:"choice" jsonschema:"required,description=true to approve the Captain/First Mate pair, false to reject it."`
}

// CaptainDiscardCardArgs is the captain's discard from the drawn three.
type CaptainDiscardCardArgs struct {
	Reasoning string `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	CardIndex int    `json:"card_index" jsonschema:"required,minimum=0,maximum=2,description=Zero-based index (0, 1, or 2) of the drawn card to discard. The remaining two go to the First Mate."`
}

// FirstMatePlayCardArgs is the first mate's play from the remaining two.
type FirstMatePlayCardArgs struct {
	Reasoning string `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	CardIndex int    `json:"card_index" jsonschema:"required,minimum=0,maximum=1,description=Zero-based index (0 or 1) of the card to play. The other is discarded."`
}

// AskSpeakArgs lets an agent opt into discourse and optionally direct a
// question at another agent.
type AskSpeakArgs struct {
	Reasoning                     string  `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	QuestionOrStatement           *string `json:"question_or_statement" jsonschema:"description=What you want to say, or null if you decline to speak."`
	AskDirectedQuestionToAgentID  *string `json:"ask_directed_question_to_agent_id" jsonschema:"description=The agent_id to direct your question to, or null if not directing it at anyone."`
}

// AnswerDirectedQuestionArgs is a reply to a question directed at the agent.
type AnswerDirectedQuestionArgs struct {
	Reasoning string `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	Response  string `json:"response" jsonschema:"required,description=Your answer to the question that was directed at you."`
}

// ChooseAgentToEjectArgs is reserved for a future executive power; it is
// reachable in the schema builder but never triggered by the round loop.
type ChooseAgentToEjectArgs struct {
	Reasoning string  `json:"reasoning" jsonschema:"required,description=Explain your reasoning behind the action you are taking. Think step-by-step about why this is the right choice."`
	AgentID   *string `json:"agent_id" jsonschema:"description=The agent_id to eject, or null to decline using this power."`
}

// ErrUnknownTool is returned when a tool name falls outside the closed
// vocabulary above.
type ErrUnknownTool struct {
	Name string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown tool name: %s", e.Name)
}
