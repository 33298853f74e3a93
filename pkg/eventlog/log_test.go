package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

func TestLog_CountersMonotonicStartingAtZero(t *testing.T) {
	l := New([]string{"a1", "a2"})

	e0 := l.AppendPublic(NominationProposed("a1", "a2"))
	e1 := l.AppendPrivate("a1", CaptainCardDraw([]model.PolicyCard{model.CardSabotage}, model.CardSabotage))
	e2 := l.AppendPublic(Vote("a2", true))

	assert.Equal(t, 0, e0.Counter)
	assert.Equal(t, 1, e1.Counter)
	assert.Equal(t, 2, e2.Counter)
}

func TestLog_PrivateIsolation(t *testing.T) {
	l := New([]string{"a1", "a2"})

	l.AppendPublic(NominationProposed("a1", "a2"))
	l.AppendPrivate("a1", CaptainCardDraw([]model.PolicyCard{model.CardSabotage}, model.CardSabotage))
	l.AppendPrivate("a2", FirstMateCardReceive([]model.PolicyCard{model.CardSecurity, model.CardSabotage}))

	snapA1 := l.SnapshotFor("a1")
	require.Len(t, snapA1, 2)
	assert.Equal(t, KindNominationProposed, snapA1[0].Kind)
	assert.Equal(t, KindCaptainCardDraw, snapA1[1].Kind)

	snapA2 := l.SnapshotFor("a2")
	require.Len(t, snapA2, 2)
	assert.Equal(t, KindNominationProposed, snapA2[0].Kind)
	assert.Equal(t, KindFirstMateCardReceive, snapA2[1].Kind)

	for _, e := range snapA1 {
		if e.Recipient != "" {
			assert.Equal(t, "a1", e.Recipient)
		}
	}
}

func TestLog_SinceForReturnsOnlyNewEvents(t *testing.T) {
	l := New([]string{"a1"})

	l.AppendPublic(NominationProposed("a1", "a1"))
	l.AppendPublic(Vote("a1", true))
	cutoff := l.NextCounter() - 1

	l.AppendPublic(Speech("a1", "hello", ""))

	delta := l.SinceFor("a1", cutoff)
	require.Len(t, delta, 1)
	assert.Equal(t, KindSpeech, delta[0].Kind)
}

func TestLog_SnapshotOrderedByCounter(t *testing.T) {
	l := New([]string{"a1"})
	for i := 0; i < 5; i++ {
		l.AppendPublic(Vote("a1", i%2 == 0))
	}
	snap := l.SnapshotFor("a1")
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Counter, snap[i].Counter)
	}
}
