// Package eventlog implements the per-game append-only event stream:
// monotonically numbered public events plus per-agent private event
// streams, grounded on the teacher's Event/NewEvent construction idiom
// (pkg/agent/event.go in the reference corpus) and adapted into the
// closed, tagged variant set this game's hidden-information model needs.
package eventlog

import (
	"time"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// Kind discriminates the event payload variants.
type Kind string

const (
	// Public variants.
	KindNominationProposed Kind = "nomination_proposed"
	KindVote               Kind = "vote"
	KindSpeech             Kind = "speech"
	KindDirectedAnswer     Kind = "directed_answer"
	KindPolicyResolved     Kind = "policy_resolved"

	// Private variants, delivered only to Recipient.
	KindCaptainCardDraw      Kind = "captain_card_draw"
	KindFirstMateCardReceive Kind = "first_mate_card_receive"
)

// Event is a single tagged record in the log. Counter is assigned by the
// Log at append time and is unique and strictly increasing across the
// whole game. Recipient is empty for public events.
type Event struct {
	Counter   int
	Kind      Kind
	Timestamp time.Time
	Recipient string

	// NominationProposed
	CaptainID        string
	NominatedAgentID string

	// Vote
	VoterID    string
	VoteChoice bool

	// Speech / DirectedAnswer
	SpeakerID          string
	SpeechText         string
	DirectedToAgentID  string
	AnswererID         string
	AnswerText         string
	// QuestionCounter links a DirectedAnswer back to the Speech event that
	// posed the question, so a renderer or test can pair them in order.
	QuestionCounter int

	// PolicyResolved. ResolvedByAgentID is empty when the resolution comes
	// from the triple-failed-vote auto-resolve (actor=nil in the source).
	ResolvedCard      model.PolicyCard
	ResolvedByAgentID string

	// CaptainCardDraw (private to the captain)
	Drawn     []model.PolicyCard
	Discarded model.PolicyCard

	// FirstMateCardReceive (private to the first mate)
	Received []model.PolicyCard
}

// NominationProposed builds a public NominationProposed event.
func NominationProposed(captainID, nominatedAgentID string) Event {
	return Event{Kind: KindNominationProposed, Timestamp: time.Now(), CaptainID: captainID, NominatedAgentID: nominatedAgentID}
}

// Vote builds a public Vote event.
func Vote(voterID string, choice bool) Event {
	return Event{Kind: KindVote, Timestamp: time.Now(), VoterID: voterID, VoteChoice: choice}
}

// Speech builds a public Speech event, optionally directed at another agent.
func Speech(speakerID, text, directedToAgentID string) Event {
	return Event{Kind: KindSpeech, Timestamp: time.Now(), SpeakerID: speakerID, SpeechText: text, DirectedToAgentID: directedToAgentID}
}

// DirectedAnswer builds a public DirectedAnswer event answering the Speech
// event identified by questionCounter.
func DirectedAnswer(answererID, text string, questionCounter int) Event {
	return Event{Kind: KindDirectedAnswer, Timestamp: time.Now(), AnswererID: answererID, AnswerText: text, QuestionCounter: questionCounter}
}

// PolicyResolved builds a public PolicyResolved event. resolvedByAgentID is
// empty for the triple-failed-vote auto-resolve.
func PolicyResolved(card model.PolicyCard, resolvedByAgentID string) Event {
	return Event{Kind: KindPolicyResolved, Timestamp: time.Now(), ResolvedCard: card, ResolvedByAgentID: resolvedByAgentID}
}

// CaptainCardDraw builds a private event for the captain's discard.
func CaptainCardDraw(drawn []model.PolicyCard, discarded model.PolicyCard) Event {
	return Event{Kind: KindCaptainCardDraw, Timestamp: time.Now(), Drawn: drawn, Discarded: discarded}
}

// FirstMateCardReceive builds a private event for the first mate's hand.
func FirstMateCardReceive(received []model.PolicyCard) Event {
	return Event{Kind: KindFirstMateCardReceive, Timestamp: time.Now(), Received: received}
}
