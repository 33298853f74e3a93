package deck

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

func newTestDeck(t *testing.T, sabotage, security int) *Deck {
	t.Helper()
	return New(Config{
		TotalSabotage: sabotage,
		TotalSecurity: security,
		RNG:           rand.New(rand.NewSource(1)),
	})
}

func TestDeck_DrawReducesPile(t *testing.T) {
	d := newTestDeck(t, 11, 6)
	require.Equal(t, 17, d.Remaining())

	cards, err := d.Draw(3)
	require.NoError(t, err)
	assert.Len(t, cards, 3)
	assert.Equal(t, 14, d.Remaining())
}

func TestDeck_ReshufflesDiscardWhenDrawPileEmpty(t *testing.T) {
	d := newTestDeck(t, 1, 1)

	cards, err := d.Draw(2)
	require.NoError(t, err)
	require.Equal(t, 0, d.Remaining())

	for _, c := range cards {
		d.AddToDiscard(c)
	}
	require.Equal(t, 2, d.DiscardCount())

	drawn, err := d.Draw(2)
	require.NoError(t, err)
	assert.Len(t, drawn, 2)
	assert.Equal(t, 0, d.DiscardCount())
}

func TestDeck_ExhaustedWhenBothPilesTooSmall(t *testing.T) {
	d := newTestDeck(t, 1, 0)

	_, err := d.Draw(2)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDeck_Conservation(t *testing.T) {
	d := newTestDeck(t, 11, 6)
	total := d.TotalCards()

	var resolved int
	for i := 0; i < 5; i++ {
		cards, err := d.Draw(3)
		require.NoError(t, err)
		// resolve one card onto a track, discard the rest
		resolved++
		for _, c := range cards[1:] {
			d.AddToDiscard(c)
		}
	}

	assert.Equal(t, total, d.Remaining()+d.DiscardCount()+resolved)
}

func TestDeck_AllCardsAreSabotageOrSecurity(t *testing.T) {
	d := newTestDeck(t, 11, 6)
	cards, err := d.Draw(17)
	require.NoError(t, err)

	var sabotage, security int
	for _, c := range cards {
		switch c {
		case model.CardSabotage:
			sabotage++
		case model.CardSecurity:
			security++
		default:
			t.Fatalf("unexpected card %v", c)
		}
	}
	assert.Equal(t, 11, sabotage)
	assert.Equal(t, 6, security)
}
