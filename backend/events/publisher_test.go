package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWrapsDataInEnvelope(t *testing.T) {
	raw, err := encode(EnrollmentCreated, "42", map[string]any{"user_id": 7})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, EnrollmentCreated, env.Type)
	assert.Equal(t, "42", env.Key)
	assert.False(t, env.OccurredAt.IsZero())
	assert.JSONEq(t, `{"user_id":7}`, string(env.Data))
}

func TestLoggingPublisherLogsEventType(t *testing.T) {
	var buf bytes.Buffer
	p := NewLoggingPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), UserRegistered, "1", map[string]string{"email": "a@b.c"}))
	assert.Contains(t, buf.String(), `"event_type":"user.registered"`)
}

func TestKafkaTopicNaming(t *testing.T) {
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "academy.")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "academy.purchase.status_changed", p.Topic(PurchaseStatusChanged))

	bare, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	defer bare.Close()
	assert.Equal(t, "enrollment.created", bare.Topic(EnrollmentCreated))

	_, err = NewKafkaPublisher(nil, "")
	assert.Error(t, err)
}
