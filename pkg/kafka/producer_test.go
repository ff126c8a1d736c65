package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	t.Run("writes keyed message with headers", func(t *testing.T) {
		writer := &recordingWriter{}
		producer := NewProducerWithWriter(writer, "clover-events", logger)

		err := producer.Publish(context.Background(), &Event{
			EventType:     "match.approved",
			Key:           "pay_1",
			SchemaVersion: "1.0",
			Data:          json.RawMessage(`{"invoiceNumber":"LTIV-250704001"}`),
		})
		require.NoError(t, err)
		require.Len(t, writer.messages, 1)

		msg := writer.messages[0]
		assert.Equal(t, "clover-events", msg.Topic)
		assert.Equal(t, "pay_1", string(msg.Key))
		assert.Equal(t, "event_type", msg.Headers[0].Key)
		assert.Equal(t, "match.approved", string(msg.Headers[0].Value))

		var decoded Event
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.False(t, decoded.Timestamp.IsZero())
		assert.JSONEq(t, `{"invoiceNumber":"LTIV-250704001"}`, string(decoded.Data))
	})

	t.Run("returns writer errors", func(t *testing.T) {
		writer := &recordingWriter{err: errors.New("broker unavailable")}
		producer := NewProducerWithWriter(writer, "clover-events", logger)
		assert.Error(t, producer.Publish(context.Background(), &Event{EventType: "batch.completed"}))
	})

	t.Run("close closes the writer", func(t *testing.T) {
		writer := &recordingWriter{}
		require.NoError(t, NewProducerWithWriter(writer, "t", logger).Close())
		assert.True(t, writer.closed)
	})
}
