package opponent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniz-birlikci/deception-RL/pkg/model"
)

type fakeClient struct {
	calls     int
	failUntil int
	decision  Decision
	permErr   error
}

func (f *fakeClient) Decide(ctx context.Context, history []model.HistoryItem, allowedTool model.ToolCallTarget) (Decision, error) {
	f.calls++
	if f.permErr != nil {
		return Decision{}, f.permErr
	}
	if f.calls <= f.failUntil {
		return Decision{}, errors.New("transient upstream error")
	}
	return f.decision, nil
}

func TestAdapter_SucceedsAfterTransientFailures(t *testing.T) {
	client := &fakeClient{failUntil: 2, decision: Decision{ToolName: model.ToolVoteYesNo}}
	adapter := NewAdapter("a2", client, 5)

	decision, err := adapter.Decide(context.Background(), nil, model.ToolCallTarget{Name: model.ToolVoteYesNo})
	require.NoError(t, err)
	assert.Equal(t, model.ToolVoteYesNo, decision.ToolName)
	assert.Equal(t, 3, client.calls)
}

func TestAdapter_OnRetryCalledOncePerRetriedAttempt(t *testing.T) {
	client := &fakeClient{failUntil: 2, decision: Decision{ToolName: model.ToolVoteYesNo}}
	adapter := NewAdapter("a2", client, 5)

	var retries int
	adapter.OnRetry = func(err error) { retries++ }

	_, err := adapter.Decide(context.Background(), nil, model.ToolCallTarget{Name: model.ToolVoteYesNo})
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestAdapter_UnavailableAfterExhaustingRetries(t *testing.T) {
	client := &fakeClient{failUntil: 100}
	adapter := NewAdapter("a2", client, 3)

	_, err := adapter.Decide(context.Background(), nil, model.ToolCallTarget{Name: model.ToolVoteYesNo})
	require.Error(t, err)

	var unavailable *ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "a2", unavailable.AgentID)
}

func TestAdapter_EmptyToolNameIsUnavailable(t *testing.T) {
	client := &fakeClient{decision: Decision{}}
	adapter := NewAdapter("a2", client, 3)

	_, err := adapter.Decide(context.Background(), nil, model.ToolCallTarget{Name: model.ToolVoteYesNo})
	require.Error(t, err)

	var unavailable *ErrUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
