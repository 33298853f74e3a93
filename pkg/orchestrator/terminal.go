package orchestrator

import (
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
	"github.com/deniz-birlikci/deception-RL/pkg/respparser"
)

// isGameOver implements the spec 4.5.3 game-over predicate.
func (o *Orchestrator) isGameOver() bool {
	return o.securityTrack >= o.securityTarget ||
		o.sabotageTrack >= o.sabotageTarget ||
		o.promotionWin()
}

// promotionWin reports the promotion-threshold win condition: the
// sabotage track has reached the promotion threshold and the most
// recently *seated* First Mate is the MasterImpostor.
func (o *Orchestrator) promotionWin() bool {
	if o.sabotageTrack < o.promotionThreshold {
		return false
	}
	if o.electedFirstMateID == "" {
		return false
	}
	return o.agents[o.electedFirstMateID].Agent.Role == model.RoleMasterImpostor
}

// winners returns the whole winning team's agents and the winning Team,
// resolving the open question in spec ch. 9 in favour of the whole team
// rather than just the trainable policy.
func (o *Orchestrator) winners() ([]model.Agent, model.Team) {
	team := model.TeamCrewmate
	if o.sabotageTrack >= o.sabotageTarget || o.promotionWin() {
		team = model.TeamImpostor
	}

	winners := make([]model.Agent, 0, len(o.agentOrder))
	for _, id := range o.agentOrder {
		agent := o.agents[id].Agent
		if agent.Role.Team() == team {
			winners = append(winners, agent)
		}
	}
	return winners, team
}

// emitTerminal pushes the single successful-completion terminal
// ModelInput, computing the trainable policy's reward from whether its
// team matches the winning team.
func (o *Orchestrator) emitTerminal() {
	winners, team := o.winners()

	reward := 0.0
	if o.policyAgentID != "" && o.agents[o.policyAgentID].Agent.Role.Team() == team {
		reward = 1.0
	}

	ts := model.TerminalState{
		GameID:           o.gameID,
		Winners:          winners,
		WinningTeam:      &team,
		Reward:           reward,
		TrainableAgentID: o.policyAgentID,
	}
	o.metrics.RecordGameFinished(string(team), o.rounds)
	o.output <- model.ModelInput{GameID: o.gameID, Terminal: &ts}
}

// emitFailureTerminal converts an orchestrator-level failure (unknown
// agent, malformed response, exhausted opponent retries) into a terminal
// state with reward -1 and no winners, per spec 4.5.6 / ch. 7.
func (o *Orchestrator) emitFailureTerminal(err error) {
	ts := model.TerminalState{
		GameID:           o.gameID,
		Winners:          []model.Agent{},
		WinningTeam:      nil,
		Reward:           -1.0,
		TrainableAgentID: o.policyAgentID,
		Metadata: map[string]any{
			"error":      err.Error(),
			"error_kind": errorKind(err),
		},
	}
	o.metrics.RecordGameFinished("none", o.rounds)
	o.output <- model.ModelInput{GameID: o.gameID, Terminal: &ts}
}

func errorKind(err error) string {
	switch err.(type) {
	case *AgentNotFoundError:
		return "agent_not_found"
	case *respparser.ProtocolError:
		return "protocol_error"
	case *opponent.ErrUnavailable:
		return "opponent_unavailable"
	default:
		return "unknown"
	}
}
