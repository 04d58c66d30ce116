package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestAffectsAnalytics(t *testing.T) {
	assert.True(t, New(ExpenseCreated, "a", nil).AffectsAnalytics())
	assert.True(t, New(BudgetAlert, "a", nil).AffectsAnalytics())
	assert.False(t, New(PlanCreated, "a", nil).AffectsAnalytics())
	assert.False(t, New(AnalyticsUpdated, "a", nil).AffectsAnalytics())
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("broker down")}
	m := Multi{a, nil, b}

	err := m.Publish(context.Background(), New(PlanDeleted, "alice", map[string]string{"id": "p1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, PlanDeleted, a.got[0].Type)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), New(PlanCreated, "", nil)))
}

func TestMessage(t *testing.T) {
	e := New(BudgetAlert, "alice", map[string]any{"budget_id": "b1", "status": "exceeded"})
	msg, err := message(e)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "budget.alert", msg.Type)
	assert.True(t, msg.Timestamp.Equal(e.At))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "budget.alert", decoded["type"])
	assert.Equal(t, "alice", decoded["owner"])
	assert.Equal(t, "exceeded", decoded["data"].(map[string]any)["status"])
}

func TestMessage_Unmarshalable(t *testing.T) {
	_, err := message(New(PlanCreated, "", make(chan int)))
	assert.Error(t, err)
}
