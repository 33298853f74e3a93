package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/deniz-birlikci/deception-RL/pkg/eventlog"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// discourse implements spec 4.5.4: every agent is asked whether to speak,
// opponents are queried concurrently while the trainable policy is queried
// serially and separately (so no two goroutines ever push to the same
// suspension channel pair at once), results are reassembled in original
// agent order, then the subset who chose to speak deliver their speeches
// in a randomly permuted order, each optionally followed by a synchronous
// directed question/answer exchange.
func (o *Orchestrator) discourse(ctx context.Context) error {
	ids := o.agentOrder
	gathered := make([]decision, len(ids))
	gatherErrs := make([]error, len(ids))

	policyIdx := -1
	for i, id := range ids {
		if o.agents[id].Agent.IsPolicy {
			policyIdx = i
		}
	}

	if policyIdx >= 0 {
		id := ids[policyIdx]
		d, err := o.gatherDecision(ctx, o.agents[id], model.ToolAskSpeak, o.eligibleSpeakTargets(id),
			"Decide whether to speak now: share a statement or ask a question, or pass by leaving it null.")
		gathered[policyIdx], gatherErrs[policyIdx] = d, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		if i == policyIdx {
			continue
		}
		i, id := i, id
		g.Go(func() error {
			d, err := o.gatherDecision(gctx, o.agents[id], model.ToolAskSpeak, o.eligibleSpeakTargets(id),
				"Decide whether to speak now: share a statement or ask a question, or pass by leaving it null.")
			gathered[i], gatherErrs[i] = d, err
			return nil
		})
	}
	_ = g.Wait()

	type speaker struct {
		agentID string
		args    *model.AskSpeakArgs
	}
	var speakers []speaker

	for i, id := range ids {
		if gatherErrs[i] != nil {
			return gatherErrs[i]
		}
		hydrated, err := o.applyDecision(o.agents[id], gathered[i])
		if err != nil {
			return err
		}
		args := hydrated.(*model.AskSpeakArgs)
		if args.QuestionOrStatement != nil {
			speakers = append(speakers, speaker{agentID: id, args: args})
		}
	}

	o.rng.Shuffle(len(speakers), func(i, j int) { speakers[i], speakers[j] = speakers[j], speakers[i] })

	for _, sp := range speakers {
		directedTo := ""
		if sp.args.AskDirectedQuestionToAgentID != nil {
			directedTo = *sp.args.AskDirectedQuestionToAgentID
		}
		speechEvent := o.log.AppendPublic(eventlog.Speech(sp.agentID, *sp.args.QuestionOrStatement, directedTo))

		if directedTo == "" {
			continue
		}
		if _, ok := o.agents[directedTo]; !ok {
			return &AgentNotFoundError{AgentID: directedTo}
		}

		hydrated, err := o.decide(ctx, directedTo, model.ToolAnswerDirectedQuestion, nil,
			fmt.Sprintf("%s asked you: %q. Respond.", sp.agentID, *sp.args.QuestionOrStatement))
		if err != nil {
			return err
		}
		answer := hydrated.(*model.AnswerDirectedQuestionArgs)
		o.log.AppendPublic(eventlog.DirectedAnswer(directedTo, answer.Response, speechEvent.Counter))
	}

	return nil
}
