package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	librabbit "github.com/magabrotheeeer/remnashop/internal/lib/rabbitmq"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// amqpURI возвращает адрес брокера: внешний из TEST_RABBITMQ_URL или контейнер.
func amqpURI(ctx context.Context, t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}
	if url := os.Getenv("TEST_RABBITMQ_URL"); url != "" {
		return url
	}

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForListeningPort("5672/tcp").WithStartupTimeout(2 * time.Minute),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func setup(ctx context.Context, t *testing.T) (*amqp.Channel, *librabbit.Publisher) {
	conn, err := Connect(ctx, amqpURI(ctx, t), 10, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := SetupChannel(conn, librabbit.Exchange, librabbit.AllQueues(), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	pubCh, err := conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pubCh.Close() })

	return ch, librabbit.NewPublisher(pubCh, librabbit.Exchange)
}

func TestConsumerMessage_HandleMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ch, pub := setup(ctx, t)
	queue := librabbit.SyncQueue()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		received []string
	)
	wg.Add(2)

	handler := func(_ context.Context, body []byte) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, string(body))
		wg.Done()
		return nil
	}

	_, err := ConsumerMessage(ctx, ch, queue.QueueName, 2, handler, newNoopLogger())
	require.NoError(t, err)

	for _, msg := range []string{"hello", "world"} {
		require.NoError(t, pub.Publish(queue.RoutingKey, msg))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("timeout waiting for messages to be processed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{`"hello"`, `"world"`}, received)
}

func TestConsumerMessage_HandlerErrorRequeues(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ch, pub := setup(ctx, t)
	queue := librabbit.NotificationQueues()[0]

	var attempts atomic.Int32
	processed := make(chan struct{})
	handler := func(_ context.Context, _ []byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("fail")
		}
		close(processed)
		return nil
	}

	_, err := ConsumerMessage(ctx, ch, queue.QueueName, 1, handler, newNoopLogger())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(queue.RoutingKey, "bad"))

	select {
	case <-processed:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(20 * time.Second):
		t.Fatal("message was not redelivered after nack")
	}
}

func TestConsumerMessage_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ch, _ := setup(ctx, t)

	consumeCtx, stop := context.WithCancel(ctx)
	done, err := ConsumerMessage(consumeCtx, ch, librabbit.SyncQueue().QueueName, 1,
		func(context.Context, []byte) error { return nil }, newNoopLogger())
	require.NoError(t, err)

	stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
