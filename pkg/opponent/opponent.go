// Package opponent defines the call surface over LLM-backed opponents and
// an Adapter that wraps any Client with retry/backoff governance, the way
// the teacher corpus wraps unreliable upstream calls (rate limiters,
// provider clients) rather than leaving retries to the caller.
//
// The actual network call to an LLM provider is an external collaborator,
// named only by the Client interface; this package owns only the
// uniform decide/retry/truncate contract around it.
package opponent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

// ErrUnavailable is raised once an opponent's retries are exhausted or it
// returns no tool call at all. The orchestrator converts this into a
// terminal state with negative reward.
type ErrUnavailable struct {
	AgentID string
	Cause   error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("opponent %s unavailable: %v", e.AgentID, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// Decision is one opponent's validated tool invocation.
type Decision struct {
	ToolName  string
	Arguments map[string]any
	Reasoning *string
}

// Client is the uniform call surface over an LLM-backed opponent. Decide
// must return exactly one tool invocation naming allowedTool and
// conforming to the schema narrowed to eligibleAgentIDs; if the underlying
// model returns more than one call, implementations may truncate to the
// first (spec's documented, non-contractual safety net).
type Client interface {
	Decide(ctx context.Context, history []model.HistoryItem, allowedTool model.ToolCallTarget) (Decision, error)
}

// Adapter wraps a Client with exponential backoff retries against
// transient errors, surfacing a terminal ErrUnavailable once retries are
// exhausted.
type Adapter struct {
	client      Client
	agentID     string
	maxAttempts uint

	// OnRetry, if set, is called once per retried attempt (not the first
	// try) so a caller can feed retry counts into its own metrics.
	OnRetry func(err error)
}

// NewAdapter wraps client for agentID. maxAttempts defaults to 3 when 0.
func NewAdapter(agentID string, client Client, maxAttempts uint) *Adapter {
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	return &Adapter{client: client, agentID: agentID, maxAttempts: maxAttempts}
}

// Decide calls the wrapped Client, retrying transient failures with
// exponential backoff. A decision that names no tool is a permanent
// failure. The Adapter does no truncation of its own: a Decision carries
// a single tool invocation, so reducing several calls to one is left to
// the Client.
func (a *Adapter) Decide(ctx context.Context, history []model.HistoryItem, allowedTool model.ToolCallTarget) (Decision, error) {
	operation := func() (Decision, error) {
		decision, err := a.client.Decide(ctx, history, allowedTool)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Decision{}, backoff.Permanent(err)
			}
			return Decision{}, err
		}
		if decision.ToolName == "" {
			return Decision{}, backoff.Permanent(fmt.Errorf("opponent returned no tool call"))
		}
		return decision, nil
	}

	opts := []backoff.RetryOption{backoff.WithMaxTries(a.maxAttempts)}
	if a.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) { a.OnRetry(err) }))
	}
	decision, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		return Decision{}, &ErrUnavailable{AgentID: a.agentID, Cause: err}
	}
	return decision, nil
}
