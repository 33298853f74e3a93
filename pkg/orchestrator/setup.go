package orchestrator

import (
	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/opponent"
)

// assignRoles implements spec 4.5.1 step 1: a trainable policy with
// impostor_oversample_prob > 0 first Bernoulli-samples whether it lands on
// the Impostor team; if so, it is assigned uniformly between Impostor and
// MasterImpostor and the remaining roles are shuffled among the other
// agents. Otherwise (no policy, or the Bernoulli draw misses, or
// oversampling is off) all five roles are shuffled uniformly.
func (o *Orchestrator) assignRoles(cfg Config) {
	ids := make([]string, len(cfg.RoleSlots))
	policyIdx := -1
	for i, slot := range cfg.RoleSlots {
		ids[i] = slot.AgentID
		if slot.IsPolicy {
			policyIdx = i
		}
	}

	roles := make([]model.Role, len(ids))
	oversampled := policyIdx >= 0 && cfg.ImpostorOversampleProb > 0 && o.rng.Float64() < cfg.ImpostorOversampleProb

	if oversampled {
		policyRole := model.RoleImpostor
		if o.rng.Intn(2) == 1 {
			policyRole = model.RoleMasterImpostor
		}
		remaining := withoutOne(fixedRoles, policyRole)
		o.rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })

		ri := 0
		for i := range ids {
			if i == policyIdx {
				roles[i] = policyRole
				continue
			}
			roles[i] = remaining[ri]
			ri++
		}
	} else {
		shuffled := append([]model.Role(nil), fixedRoles...)
		o.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		roles = shuffled
	}

	o.agents = make(map[string]*agentState, len(ids))
	for i, id := range ids {
		var client opponent.Client
		if cfg.RoleSlots[i].Opponent != nil {
			client = opponent.NewAdapter(id, cfg.RoleSlots[i].Opponent, 0)
		}
		o.agents[id] = &agentState{
			Agent:    model.Agent{ID: id, Role: roles[i], IsPolicy: cfg.RoleSlots[i].IsPolicy},
			Opponent: client,
		}
		if cfg.RoleSlots[i].IsPolicy {
			o.policyAgentID = id
		}
		o.histories[id] = model.NewAgentHistory(id)
	}
	o.agentOrder = ids
}

// withoutOne returns a copy of roles with a single occurrence of target
// removed.
func withoutOne(roles []model.Role, target model.Role) []model.Role {
	out := make([]model.Role, 0, len(roles)-1)
	removed := false
	for _, r := range roles {
		if !removed && r == target {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out
}

// buildCaptainRotation implements spec 4.5.1 step 2.
func (o *Orchestrator) buildCaptainRotation() {
	rotation := append([]string(nil), o.agentOrder...)
	o.rng.Shuffle(len(rotation), func(i, j int) { rotation[i], rotation[j] = rotation[j], rotation[i] })
	o.rotation = rotation
	o.captainIdx = 0
}

// injectSystemPrompts implements spec 4.5.1 step 3: compose rules + role +
// the public/private event distinction for each agent, including the
// fellow-impostor roster when relevant. The prompt is prepended to every
// rendered message list (see renderMessages) rather than stored as a
// history item, since it is fixed for the whole game and re-sending it as
// history would duplicate it every decision.
func (o *Orchestrator) injectSystemPrompts() {
	for id, st := range o.agents {
		prompt := "=== GAME RULES ===\n" +
			"Five agents play Captain/First Mate rounds. Each round the Captain " +
			"nominates a First Mate; all agents vote yes/no. On a majority, the " +
			"Captain draws three policy cards and discards one; the First Mate " +
			"receives the other two and plays one onto the public Security or " +
			"Sabotage track. Security wins the game for the Crewmate team at the " +
			"security target. Sabotage wins for the Impostor team at the sabotage " +
			"target, or earlier if the MasterImpostor is seated as First Mate once " +
			"the promotion threshold of Sabotage resolutions has been reached. " +
			"Three consecutive failed votes auto-resolves the top deck card.\n" +
			"=== YOUR IDENTITY ===\n" +
			"Your agent ID: " + id + "\n" +
			"Your role: " + string(st.Agent.Role) + "\n"

		if st.Agent.Role == model.RoleImpostor || st.Agent.Role == model.RoleMasterImpostor {
			prompt += "=== FELLOW IMPOSTORS ===\n"
			for _, otherID := range o.agentOrder {
				if otherID == id {
					continue
				}
				other := o.agents[otherID].Agent
				if other.Role == model.RoleImpostor || other.Role == model.RoleMasterImpostor {
					prompt += otherID + " (" + string(other.Role) + ")\n"
				}
			}
		}

		o.systemPrompts[id] = prompt
	}
}
