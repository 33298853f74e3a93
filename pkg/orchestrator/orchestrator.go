// Package orchestrator runs one game's state machine end to end: role
// setup, the nomination/discourse/vote/legislative round loop, the
// game-over predicate, and the decision-suspension protocol that lets a
// trainable policy sit at one seat of the table as a pair of channels.
//
// Grounded on Engine.run/_discourse/_vote/_get_tool in the source game,
// generalised from its fixed five-agent Liberal/Fascist/Hitler table to the
// spec's role names and reworked so only the trainable policy's decisions
// suspend on the channel pair; opponents are queried through the Opponent
// Adapter instead of an in-process AI agent registry.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"

	"go.opentelemetry.io/otel/trace"

	"github.com/deniz-birlikci/deception-RL/pkg/deck"
	"github.com/deniz-birlikci/deception-RL/pkg/eventlog"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
	"github.com/deniz-birlikci/deception-RL/pkg/telemetry"
	"github.com/deniz-birlikci/deception-RL/pkg/toolschema"
)

// fixedRoles is the game's invariant role composition: one MasterImpostor,
// one Impostor, three Crewmate. Mirrors ROLES in the source engine.
var fixedRoles = []model.Role{
	model.RoleMasterImpostor,
	model.RoleImpostor,
	model.RoleCrewmate,
	model.RoleCrewmate,
	model.RoleCrewmate,
}

// AgentNotFoundError is raised when a decider names an agent ID that does
// not exist in this game. The orchestrator converts it into a terminal
// state with reward -1 (spec ch. 7).
type AgentNotFoundError struct {
	AgentID string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent not found: %s", e.AgentID)
}

// RoleSlot describes one of the five fixed agent seats at game creation.
// At most one slot may set IsPolicy; the rest must carry an Opponent.
type RoleSlot struct {
	AgentID  string
	IsPolicy bool
	Opponent opponent.Client
}

// Config parametrises a single game. It is consumed once by New.
type Config struct {
	GameID string
	Deck   *deck.Deck

	RoleSlots          []RoleSlot
	SecurityTarget     int
	SabotageTarget     int
	PromotionThreshold int

	// ImpostorOversampleProb biases the trainable policy's role toward the
	// Impostor team for sample efficiency; 0 means uniform role assignment.
	ImpostorOversampleProb float64

	// RNG is the game-local random source, orchestrator-seeded by the
	// caller for reproducibility (role shuffle, captain rotation, speaker
	// permutation).
	RNG *rand.Rand

	// Output is written to exactly by this orchestrator; Input is read
	// from exactly by this orchestrator. Both carry the trainable
	// policy's suspension protocol (spec 4.5.5).
	Output chan<- model.ModelInput
	Input  <-chan model.ModelOutput

	// Metrics and Tracer are optional observability hooks; nil/unset
	// values are safe no-ops (telemetry.Metrics) or resolve to the global
	// no-op tracer.
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

type agentState struct {
	Agent    model.Agent
	Opponent opponent.Client
}

// Orchestrator owns one game's complete mutable state. All of it — deck,
// event log, per-agent histories, counters — is touched only by the
// goroutine running Run; opponent fan-out goroutines in discourse only
// read histories and the event log, which nothing writes until the
// fan-out has joined (see decide.go).
type Orchestrator struct {
	gameID string
	deck   *deck.Deck

	agents     map[string]*agentState
	agentOrder []string // fixed slot order, used for deterministic voting

	rotation   []string
	captainIdx int

	// outgoingFirstMateID excludes the previous round's nominee from the
	// next nomination's eligibility set.
	outgoingFirstMateID string
	// electedFirstMateID is the most recently *seated* (vote-passed) First
	// Mate, tracked separately because a failed vote must not count.
	electedFirstMateID string

	securityTrack      int
	sabotageTrack      int
	securityTarget     int
	sabotageTarget     int
	promotionThreshold int
	failedVoteTracker  int

	log           *eventlog.Log
	histories     map[string]*model.AgentHistory
	systemPrompts map[string]string

	schemaBuilder *toolschema.Builder

	output chan<- model.ModelInput
	input  <-chan model.ModelOutput

	rng *rand.Rand

	policyAgentID string

	rounds  int
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New validates cfg and assigns roles, the captain rotation, and each
// agent's system prompt. It performs no suspension and is side-effect-free
// beyond consuming cfg.RNG.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.RoleSlots) != len(fixedRoles) {
		return nil, fmt.Errorf("orchestrator: expected %d role slots, got %d", len(fixedRoles), len(cfg.RoleSlots))
	}
	if cfg.RNG == nil {
		return nil, fmt.Errorf("orchestrator: RNG is required")
	}
	policyCount := 0
	for _, slot := range cfg.RoleSlots {
		if slot.IsPolicy {
			policyCount++
		} else if slot.Opponent == nil {
			return nil, fmt.Errorf("orchestrator: non-policy slot %q has no opponent", slot.AgentID)
		}
	}
	if policyCount > 1 {
		return nil, fmt.Errorf("orchestrator: at most one role slot may be the trainable policy")
	}

	o := &Orchestrator{
		gameID:             cfg.GameID,
		deck:               cfg.Deck,
		securityTarget:     cfg.SecurityTarget,
		sabotageTarget:     cfg.SabotageTarget,
		promotionThreshold: cfg.PromotionThreshold,
		histories:          make(map[string]*model.AgentHistory, len(cfg.RoleSlots)),
		systemPrompts:      make(map[string]string, len(cfg.RoleSlots)),
		schemaBuilder:      toolschema.NewBuilder(),
		output:             cfg.Output,
		input:              cfg.Input,
		rng:                cfg.RNG,
		metrics:            cfg.Metrics,
		tracer:             cfg.Tracer,
	}
	if o.tracer == nil {
		o.tracer = telemetry.Tracer("deception-rl/orchestrator")
	}

	o.assignRoles(cfg)
	o.log = eventlog.New(o.agentOrder)
	o.buildCaptainRotation()
	o.injectSystemPrompts()

	return o, nil
}

// Run executes the round loop until the game-over predicate fires, then
// pushes exactly one terminal ModelInput and returns. Any orchestrator
// failure (unknown agent, malformed response, exhausted opponent retries)
// short-circuits the loop into a terminal state with reward -1 instead of
// propagating, per spec 4.5.6 — the caller never blocks indefinitely.
func (o *Orchestrator) Run(ctx context.Context) {
	o.metrics.RecordGameStarted()
	for !o.isGameOver() {
		if err := o.playRound(ctx); err != nil {
			o.emitFailureTerminal(err)
			return
		}
		o.rounds++
	}
	o.emitTerminal()
}

// mustDraw panics on deck exhaustion: under the game's invariants (targets
// never exceed the deck's composition) this can only happen from a
// configuration bug, not a reachable game state.
func (o *Orchestrator) mustDraw(n int) []model.PolicyCard {
	cards, err := o.deck.Draw(n)
	if err != nil {
		panic(fmt.Sprintf("orchestrator %s: %v", o.gameID, err))
	}
	return cards
}

func (o *Orchestrator) resolveCard(card model.PolicyCard) {
	if card == model.CardSabotage {
		o.sabotageTrack++
	} else {
		o.securityTrack++
	}
}

func (o *Orchestrator) advanceCaptain() {
	o.captainIdx = (o.captainIdx + 1) % len(o.rotation)
}

// eligibleNominees excludes the nominating captain and the previous
// round's First Mate from this round's pick_first_mate enumeration.
func (o *Orchestrator) eligibleNominees(captainID string) []string {
	eligible := make([]string, 0, len(o.agentOrder)-1)
	for _, id := range o.agentOrder {
		if id == captainID || id == o.outgoingFirstMateID {
			continue
		}
		eligible = append(eligible, id)
	}
	return eligible
}

// eligibleSpeakTargets excludes selfID from ask_speak's narrowed
// ask_directed_question_to_agent_id enumeration.
func (o *Orchestrator) eligibleSpeakTargets(selfID string) []string {
	eligible := make([]string, 0, len(o.agentOrder)-1)
	for _, id := range o.agentOrder {
		if id != selfID {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

// TrainableRole reports the trainable policy's assigned Role, if this
// game has one. The Engine API surfaces this so a caller can inspect a
// game's policy seat without waiting for a terminal state.
func (o *Orchestrator) TrainableRole() (model.Role, bool) {
	if o.policyAgentID == "" {
		return "", false
	}
	return o.agents[o.policyAgentID].Agent.Role, true
}

// validateAgentRefs checks any agent-ID-valued field on a hydrated tool
// argument struct against the live agent set, surfacing AgentNotFoundError
// for a reference the narrowed schema's enum should have prevented but the
// decider produced anyway.
func (o *Orchestrator) validateAgentRefs(hydrated any) error {
	check := func(id string) error {
		if id == "" {
			return nil
		}
		if _, ok := o.agents[id]; !ok {
			return &AgentNotFoundError{AgentID: id}
		}
		return nil
	}

	switch args := hydrated.(type) {
	case *model.PickFirstMateArgs:
		return check(args.AgentID)
	case *model.AskSpeakArgs:
		if args.AskDirectedQuestionToAgentID != nil {
			return check(*args.AskDirectedQuestionToAgentID)
		}
	case *model.ChooseAgentToEjectArgs:
		if args.AgentID != nil {
			return check(*args.AgentID)
		}
	}
	return nil
}
