package rabbitmq

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishMessage(t *testing.T) {
	type testMsg struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	t.Run("success", func(t *testing.T) {
		ch := &fakeChannel{}
		require.NoError(t, PublishMessage(ch, Exchange, RoutingNotifyUser, testMsg{ID: 1, Name: "Hello"}))

		require.Len(t, ch.sent, 1)
		got := ch.sent[0]
		assert.Equal(t, Exchange, got.exchange)
		assert.Equal(t, RoutingNotifyUser, got.key)
		assert.Equal(t, "application/json", got.msg.ContentType)
		assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

		var decoded testMsg
		require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
		assert.Equal(t, testMsg{ID: 1, Name: "Hello"}, decoded)
	})

	t.Run("marshal error", func(t *testing.T) {
		badMsg := struct {
			Ch chan int `json:"ch"`
		}{Ch: make(chan int)}

		err := PublishMessage(&fakeChannel{}, Exchange, RoutingNotifyUser, badMsg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	})

	t.Run("channel error", func(t *testing.T) {
		boom := errors.New("channel closed")
		err := PublishMessage(&fakeChannel{err: boom}, Exchange, RoutingNotifyUser, testMsg{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestPublisher_Concurrent(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, Exchange)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(RoutingTaskRedirect, map[string]int{"i": i}))
		}()
	}
	wg.Wait()

	assert.Len(t, ch.sent, 20)
}

func TestQueues(t *testing.T) {
	queues := AllQueues()
	require.Len(t, queues, 4)

	seenQueue := map[string]bool{}
	seenKey := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seenQueue[q.QueueName], "duplicate queue name: %s", q.QueueName)
		assert.Falsef(t, seenKey[q.RoutingKey], "duplicate routing key: %s", q.RoutingKey)
		seenQueue[q.QueueName] = true
		seenKey[q.RoutingKey] = true
	}
	assert.Equal(t, RoutingTaskSync, SyncQueue().RoutingKey)
}
