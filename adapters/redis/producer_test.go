package redis

import (
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewEventProducer(t *testing.T) {
	tests := []struct {
		name    string
		client  *redis.Client
		stream  string
		opts    []ProducerOption
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			client:  redis.NewClient(&redis.Options{}),
			stream:  "auction-events",
			wantErr: false,
		},
		{
			name:    "nil client",
			client:  nil,
			stream:  "auction-events",
			wantErr: true,
			errMsg:  "redis client cannot be nil",
		},
		{
			name:    "empty stream",
			client:  redis.NewClient(&redis.Options{}),
			stream:  "",
			wantErr: true,
			errMsg:  "stream cannot be empty",
		},
		{
			name:   "with custom options",
			client: redis.NewClient(&redis.Options{}),
			stream: "auction-events",
			opts: []ProducerOption{
				WithProducerLogger(slog.Default()),
				WithProducerBufferSize(200),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			producer, err := NewEventProducer(tt.client, tt.stream, tt.opts...)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, producer)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, producer)
				producer.Close()
			}

			if tt.client != nil {
				tt.client.Close()
			}
		})
	}
}

func TestEventProducer_StartStop(t *testing.T) {
	t.Run("normal start and stop", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, _, cleanup := setupTest(t)
		defer cleanup()

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		time.Sleep(100 * time.Millisecond)
		producer.Close()
	})

	t.Run("multiple start calls", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, _, cleanup := setupTest(t)
		defer cleanup()

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		producer.Start() // Should be no-op
		time.Sleep(100 * time.Millisecond)
		producer.Close()
	})

	t.Run("multiple stop calls", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, _, cleanup := setupTest(t)
		defer cleanup()

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		time.Sleep(100 * time.Millisecond)
		producer.Close()
		producer.Close() // Should be no-op
	})
}

func TestEventProducer_Publish(t *testing.T) {
	t.Run("successful publish", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		ev := testEvent(1)
		msgValues, err := EncodeEvent(ev)
		require.NoError(t, err)

		mock.ExpectXAdd(&redis.XAddArgs{
			Stream: "auction-events",
			Values: msgValues,
		}).SetVal("1234-0")

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		err = producer.Publish(ev)
		assert.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		producer.Close()
	})

	t.Run("publish to closed producer", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, _, cleanup := setupTest(t)
		defer cleanup()

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		time.Sleep(100 * time.Millisecond)
		producer.Close()

		err = producer.Publish(testEvent(1))
		assert.ErrorIs(t, err, ErrProducerClosed)
	})

	t.Run("publish with redis connection error", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		ev := testEvent(1)
		msgValues, err := EncodeEvent(ev)
		require.NoError(t, err)

		mock.ExpectXAdd(&redis.XAddArgs{
			Stream: "auction-events",
			Values: msgValues,
		}).SetErr(redis.ErrClosed)

		producer, err := NewEventProducer(client, "auction-events")
		require.NoError(t, err)

		producer.Start()
		err = producer.Publish(ev)
		assert.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		producer.Close()
	})
}
