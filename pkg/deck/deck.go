// Package deck implements the game's draw/discard/reshuffle policy-card
// pile. A Deck is owned exclusively by its Game's orchestrator goroutine
// (see pkg/orchestrator); the mutex below documents that invariant rather
// than defending against genuine concurrent access.
package deck

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// ErrExhausted is returned by Draw when the draw and discard piles
// together hold fewer cards than requested.
var ErrExhausted = errors.New("deck exhausted: draw and discard piles both empty")

// Deck holds the ordered draw pile and the unordered discard pile for one
// game. Total card counts come from Config.TotalSabotage and
// Config.TotalSecurity (the standard deck is 11 sabotage, 6 security).
type Deck struct {
	mu sync.Mutex

	drawPile    []model.PolicyCard
	discardPile []model.PolicyCard

	totalSabotage int
	totalSecurity int

	rng *rand.Rand
}

// Config controls deck composition and reproducibility.
type Config struct {
	TotalSabotage int
	TotalSecurity int
	RNG           *rand.Rand // required: game-local, orchestrator-seeded
}

// New builds and shuffles a fresh deck.
func New(cfg Config) *Deck {
	d := &Deck{
		totalSabotage: cfg.TotalSabotage,
		totalSecurity: cfg.TotalSecurity,
		rng:           cfg.RNG,
	}
	d.initialize()
	return d
}

func (d *Deck) initialize() {
	cards := make([]model.PolicyCard, 0, d.totalSabotage+d.totalSecurity)
	for i := 0; i < d.totalSabotage; i++ {
		cards = append(cards, model.CardSabotage)
	}
	for i := 0; i < d.totalSecurity; i++ {
		cards = append(cards, model.CardSecurity)
	}
	d.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	d.drawPile = cards
}

// Draw pops count cards from the top of the draw pile, reshuffling the
// discard pile in whenever the draw pile runs dry mid-draw. It fails with
// ErrExhausted only if the draw and discard piles together hold fewer than
// count cards.
func (d *Deck) Draw(count int) ([]model.PolicyCard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if count > len(d.drawPile)+len(d.discardPile) {
		return nil, ErrExhausted
	}

	drawn := make([]model.PolicyCard, 0, count)
	for i := 0; i < count; i++ {
		if len(d.drawPile) == 0 {
			if err := d.reshuffleDiscard(); err != nil {
				return nil, err
			}
		}
		last := len(d.drawPile) - 1
		drawn = append(drawn, d.drawPile[last])
		d.drawPile = d.drawPile[:last]
	}
	return drawn, nil
}

// reshuffleDiscard moves the discard pile into the draw pile, shuffled.
// Caller must hold d.mu.
func (d *Deck) reshuffleDiscard() error {
	if len(d.discardPile) == 0 {
		return ErrExhausted
	}
	d.drawPile = d.discardPile
	d.discardPile = nil
	d.rng.Shuffle(len(d.drawPile), func(i, j int) { d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i] })
	return nil
}

// AddToDiscard appends card to the discard pile.
func (d *Deck) AddToDiscard(card model.PolicyCard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discardPile = append(d.discardPile, card)
}

// Remaining returns the number of cards left in the draw pile.
func (d *Deck) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.drawPile)
}

// DiscardCount returns the number of cards currently in the discard pile.
func (d *Deck) DiscardCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.discardPile)
}

// TotalCards returns the deck's fixed total size, for conservation checks.
func (d *Deck) TotalCards() int {
	return d.totalSabotage + d.totalSecurity
}
