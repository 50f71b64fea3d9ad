package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepSubject(t *testing.T) {
	assert.Equal(t, "splflow.run-1.transfer", StepSubject("run-1", "transfer"))
}

func TestRunFilterSubject(t *testing.T) {
	assert.Equal(t, "splflow.run-1.*", RunFilterSubject("run-1"))
	assert.Equal(t, "splflow.>", RunFilterSubject(""))
}

func TestStepEventJSON(t *testing.T) {
	event := &StepEvent{
		RunID:      "run-1",
		Step:       "issue",
		Status:     StatusSucceeded,
		Amount:     10_000_000_000_000,
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "issue", fields["step"])
	assert.Equal(t, "succeeded", fields["status"])
	assert.NotContains(t, fields, "signature")
	assert.NotContains(t, fields, "detail")
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishStep(ctx, &StepEvent{RunID: "a", Step: "fund"}))
	require.NoError(t, m.PublishStep(ctx, &StepEvent{RunID: "b", Step: "fund"}))
	require.NoError(t, m.PublishStep(ctx, &StepEvent{RunID: "a", Step: "create_mint"}))

	assert.Len(t, m.GetPublishedEvents(), 3)
	assert.Len(t, m.GetPublishedEventsForRun("a"), 2)

	m.SetPublishError(errors.New("nats down"))
	assert.Error(t, m.PublishStep(ctx, &StepEvent{RunID: "a", Step: "issue"}))
	assert.Len(t, m.GetPublishedEvents(), 3)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
