package orchestrator

import (
	"context"
	"fmt"

	"github.com/deniz-birlikci/deception-RL/pkg/eventlog"
	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// playRound runs one full nomination/discourse/vote/legislative-session
// cycle (spec 4.5.2), advancing the captain rotation exactly once before
// returning.
func (o *Orchestrator) playRound(ctx context.Context) error {
	captainID := o.rotation[o.captainIdx]

	hydrated, err := o.decide(ctx, captainID, model.ToolPickFirstMate, o.eligibleNominees(captainID),
		fmt.Sprintf("As Captain, nominate a First Mate from the eligible agents."))
	if err != nil {
		return err
	}
	nomineeID := hydrated.(*model.PickFirstMateArgs).AgentID

	o.log.AppendPublic(eventlog.NominationProposed(captainID, nomineeID))

	if err := o.discourse(ctx); err != nil {
		return err
	}

	passed, err := o.vote(ctx, nomineeID)
	if err != nil {
		return err
	}

	if !passed {
		o.failedVoteTracker++
		if o.failedVoteTracker >= 3 {
			o.autoResolveFailedElection()
		}
		o.advanceCaptain()
		return nil
	}

	o.failedVoteTracker = 0
	o.outgoingFirstMateID = nomineeID
	o.electedFirstMateID = nomineeID

	if err := o.legislativeSession(ctx, captainID, nomineeID); err != nil {
		return err
	}

	if err := o.discourse(ctx); err != nil {
		return err
	}

	o.advanceCaptain()
	return nil
}

// vote prompts every agent for vote_yes_no in deterministic agent order
// and reports whether a strict majority approved the nominee. The Vote
// events are appended only after every agent has voted, so no voter sees
// another's vote before casting its own.
func (o *Orchestrator) vote(ctx context.Context, nomineeID string) (bool, error) {
	choices := make([]bool, len(o.agentOrder))
	for i, id := range o.agentOrder {
		hydrated, err := o.decide(ctx, id, model.ToolVoteYesNo, nil,
			fmt.Sprintf("Vote yes or no on Captain's nomination of %s as First Mate.", nomineeID))
		if err != nil {
			return false, err
		}
		choices[i] = hydrated.(*model.VoteYesNoArgs).Choice
	}
	yes, total := 0, 0
	for i, id := range o.agentOrder {
		o.log.AppendPublic(eventlog.Vote(id, choices[i]))
		total++
		if choices[i] {
			yes++
		}
	}
	return yes > total/2, nil
}

// autoResolveFailedElection implements the triple-failed-vote auto-resolve:
// the top deck card is played onto its track as a public PolicyResolved
// event with no acting agent, and the failed-vote tracker resets.
func (o *Orchestrator) autoResolveFailedElection() {
	card := o.mustDraw(1)[0]
	o.log.AppendPublic(eventlog.PolicyResolved(card, ""))
	o.resolveCard(card)
	o.failedVoteTracker = 0
}

// legislativeSession runs the Captain-draws/discards, First-Mate-plays
// sequence (spec 4.5.2 step 4).
func (o *Orchestrator) legislativeSession(ctx context.Context, captainID, firstMateID string) error {
	cards := o.mustDraw(3)

	hydrated, err := o.decide(ctx, captainID, model.ToolCaptainDiscardCard, nil,
		fmt.Sprintf("Cards drawn: %v. Choose the index of the card to discard.", cards))
	if err != nil {
		return err
	}
	discardIdx := hydrated.(*model.CaptainDiscardCardArgs).CardIndex
	discarded := cards[discardIdx]
	remaining := make([]model.PolicyCard, 0, 2)
	for i, c := range cards {
		if i != discardIdx {
			remaining = append(remaining, c)
		}
	}
	o.deck.AddToDiscard(discarded)
	o.log.AppendPrivate(captainID, eventlog.CaptainCardDraw(cards, discarded))

	hydrated, err = o.decide(ctx, firstMateID, model.ToolFirstMatePlayCard, nil,
		fmt.Sprintf("Cards received: %v. Choose the index of the card to play.", remaining))
	if err != nil {
		return err
	}
	o.log.AppendPrivate(firstMateID, eventlog.FirstMateCardReceive(remaining))

	playIdx := hydrated.(*model.FirstMatePlayCardArgs).CardIndex
	played := remaining[playIdx]
	unplayed := remaining[1-playIdx]
	o.deck.AddToDiscard(unplayed)

	o.log.AppendPublic(eventlog.PolicyResolved(played, firstMateID))
	o.resolveCard(played)
	return nil
}
