// Package engine is the process-wide registry of running games, grounded
// on EngineAPI in the source game: create spawns an orchestrator task and
// hands back its first yield; execute pushes a response and awaits the
// next one; finalize tears a game down. Where the source spawns a Python
// thread per game and blocks on Queue.get, this package spawns one
// goroutine per game and blocks on a pair of typed channels — the same
// shape, the language's native concurrency primitive instead of a queue.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
	"github.com/deniz-birlikci/deception-RL/pkg/orchestrator"
	"github.com/deniz-birlikci/deception-RL/pkg/telemetry"
)

// GameNotFoundError is returned by Execute, GameExists-adjacent lookups,
// and Finalize for an ID the registry doesn't hold, per spec ch. 7.
type GameNotFoundError struct {
	GameID string
}

func (e *GameNotFoundError) Error() string {
	return fmt.Sprintf("game not found: %s", e.GameID)
}

// gameHandle is the registry's per-game bookkeeping: the channel pair the
// orchestrator goroutine owns, its cancellation, and a done signal used to
// detect a crash before the first yield.
type gameHandle struct {
	output chan model.ModelInput
	input  chan model.ModelOutput
	cancel context.CancelFunc
	done   chan struct{}
	orch   *orchestrator.Orchestrator
}

// gameRegistry is a mutex-protected map of running games. It exists
// in-line here, rather than as a standalone generic container, because
// Engine is its only caller and only ever needs register/get/remove.
type gameRegistry struct {
	mu    sync.RWMutex
	games map[string]*gameHandle
}

func (r *gameRegistry) register(gameID string, h *gameHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[gameID]; exists {
		return fmt.Errorf("game '%s' already registered", gameID)
	}
	r.games[gameID] = h
	return nil
}

func (r *gameRegistry) get(gameID string) (*gameHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.games[gameID]
	return h, ok
}

func (r *gameRegistry) remove(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.games, gameID)
}

// Engine is process-wide state shared across every running game. It holds
// no game logic of its own; all of that lives in pkg/orchestrator.
type Engine struct {
	games   *gameRegistry
	metrics *telemetry.Metrics
}

// New creates an empty Engine.
func New() *Engine {
	return &Engine{games: &gameRegistry{games: make(map[string]*gameHandle)}}
}

// WithMetrics attaches the process-wide metrics instance games should be
// scraped through. It returns the Engine so it chains with New.
func (e *Engine) WithMetrics(m *telemetry.Metrics) *Engine {
	e.metrics = m
	return e
}

// MetricsHandler returns the Prometheus scrape endpoint for this engine's
// attached metrics, or a 503 stub if none were attached.
func (e *Engine) MetricsHandler() http.Handler {
	return e.metrics.Handler()
}

// Create registers gameID, spawns its orchestrator goroutine, and returns
// the first ModelInput it yields. If the orchestrator panics before
// yielding anything, a synthetic terminal ModelInput with reward -1 is
// returned instead (spec 4.6).
func (e *Engine) Create(ctx context.Context, gameID string, cfg orchestrator.Config) (model.ModelInput, error) {
	output := make(chan model.ModelInput, 1)
	input := make(chan model.ModelOutput, 1)
	cfg.Output = output
	cfg.Input = input

	orch, err := orchestrator.New(cfg)
	if err != nil {
		return model.ModelInput{}, err
	}

	gctx, cancel := context.WithCancel(ctx)
	handle := &gameHandle{output: output, input: input, cancel: cancel, done: make(chan struct{}), orch: orch}

	if err := e.games.register(gameID, handle); err != nil {
		cancel()
		return model.ModelInput{}, fmt.Errorf("game %s already exists", gameID)
	}

	go func() {
		defer close(handle.done)
		defer func() {
			if r := recover(); r != nil {
				ts := model.TerminalState{
					GameID:  gameID,
					Winners: []model.Agent{},
					Reward:  -1.0,
					Metadata: map[string]any{
						"error":      fmt.Sprintf("%v", r),
						"error_kind": "panic",
					},
				}
				select {
				case output <- model.ModelInput{GameID: gameID, Terminal: &ts}:
				default:
				}
			}
		}()
		orch.Run(gctx)
	}()

	first := <-output
	if first.Terminal != nil {
		e.games.remove(gameID)
	}
	return first, nil
}

// Execute pushes output to gameID's running orchestrator and returns its
// next yield. It fails with GameNotFoundError for an unknown or already
// terminal gameID.
func (e *Engine) Execute(ctx context.Context, gameID string, output model.ModelOutput) (model.ModelInput, error) {
	handle, ok := e.games.get(gameID)
	if !ok {
		return model.ModelInput{}, &GameNotFoundError{GameID: gameID}
	}

	select {
	case handle.input <- output:
	case <-handle.done:
		e.games.remove(gameID)
		return model.ModelInput{}, &GameNotFoundError{GameID: gameID}
	case <-ctx.Done():
		return model.ModelInput{}, ctx.Err()
	}

	select {
	case msg := <-handle.output:
		if msg.Terminal != nil {
			e.games.remove(gameID)
		}
		return msg, nil
	case <-handle.done:
		e.games.remove(gameID)
		return model.ModelInput{}, fmt.Errorf("game %s crashed without yielding a response", gameID)
	case <-ctx.Done():
		return model.ModelInput{}, ctx.Err()
	}
}

// GameExists reports whether gameID is a currently running (non-terminal)
// game.
func (e *Engine) GameExists(gameID string) bool {
	_, ok := e.games.get(gameID)
	return ok
}

// GetTrainableRole returns the Role of gameID's trainable policy seat, if
// it has one.
func (e *Engine) GetTrainableRole(gameID string) (model.Role, bool, error) {
	handle, ok := e.games.get(gameID)
	if !ok {
		return "", false, &GameNotFoundError{GameID: gameID}
	}
	role, hasPolicy := handle.orch.TrainableRole()
	return role, hasPolicy, nil
}

// Finalize cancels gameID's orchestrator task and removes it from the
// registry, for the external caller dropping a game early (spec ch. 5,
// "Cancellation & timeouts").
func (e *Engine) Finalize(gameID string) error {
	handle, ok := e.games.get(gameID)
	if !ok {
		return &GameNotFoundError{GameID: gameID}
	}
	handle.cancel()
	e.games.remove(gameID)
	return nil
}
