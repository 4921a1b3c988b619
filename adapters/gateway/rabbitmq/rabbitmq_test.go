package rabbitmq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/codec"
	"github.com/Go-routine-4595/equipment-dash/model"
)

func newTestRabbit(t *testing.T) *RabbitMQ {
	t.Helper()
	enc, err := codec.NewEncoder(codec.FormatMsgpack)
	require.NoError(t, err)
	return NewRabbitMQ(RabbitMQConfig{QueueName: "dashboard"}, enc, zerolog.Nop())
}

func TestRabbitMQ_ConsumePublishesQueuedEvents(t *testing.T) {
	r := newTestRabbit(t)
	published := make(chan []byte, 4)
	r.publish = func(body []byte) error {
		published <- body
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go r.consume(ctx, wg)

	require.NoError(t, r.PublishSync(model.SyncEvent{CycleID: "c-1", Total: 2}))

	select {
	case body := <-published:
		var ev model.SyncEvent
		require.NoError(t, msgpack.Unmarshal(body, &ev))
		assert.Equal(t, "c-1", ev.CycleID)
		assert.Equal(t, 2, ev.Total)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}

	cancel()
	wg.Wait()
}

func TestRabbitMQ_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	r := newTestRabbit(t)

	for i := 0; i < queueSize+5; i++ {
		require.NoError(t, r.PublishSync(model.SyncEvent{CycleID: "c"}))
	}

	assert.Len(t, r.msgs, queueSize)
}

func TestRabbitMQ_CloseWithoutConnection(t *testing.T) {
	assert.NoError(t, newTestRabbit(t).Close())
}
