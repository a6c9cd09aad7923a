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

func TestNewEventConsumer(t *testing.T) {
	client, _, cleanup := setupTest(t)
	defer cleanup()

	tests := []struct {
		name    string
		client  *redis.Client
		stream  string
		opts    []ConsumerOption
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			client:  client,
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
			client:  client,
			stream:  "",
			wantErr: true,
			errMsg:  "stream cannot be empty",
		},
		{
			name:   "with all options",
			client: client,
			stream: "auction-events",
			opts: []ConsumerOption{
				WithConsumerLogger(slog.Default()),
				WithConsumerBufferSize(200),
				WithConsumerBlockTimeout(2 * time.Second),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			consumer, err := NewEventConsumer(tt.client, tt.stream, tt.opts...)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, consumer)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, consumer)
				consumer.Close()
			}
		})
	}
}

func TestEventConsumer_StartStop(t *testing.T) {
	t.Run("normal start and stop", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetErr(redis.Nil)

		consumer, err := NewEventConsumer(client, "auction-events")
		require.NoError(t, err)

		consumer.Start()
		time.Sleep(100 * time.Millisecond)
		consumer.Close()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multiple start calls", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetErr(redis.Nil)

		consumer, err := NewEventConsumer(client, "auction-events")
		require.NoError(t, err)

		consumer.Start()
		consumer.Start() // Should be no-op
		time.Sleep(100 * time.Millisecond)
		consumer.Close()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multiple stop calls", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetErr(redis.Nil)

		consumer, err := NewEventConsumer(client, "auction-events")
		require.NoError(t, err)

		consumer.Start()
		time.Sleep(100 * time.Millisecond)
		consumer.Close()
		consumer.Close() // Should be no-op

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventConsumer_EventConsumption(t *testing.T) {
	t.Run("successful event consumption", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		ev := testEvent(3)
		msgValues, err := EncodeEvent(ev)
		require.NoError(t, err)

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetVal([]redis.XStream{
			{
				Stream: "auction-events",
				Messages: []redis.XMessage{
					{
						ID:     "1234-0",
						Values: msgValues,
					},
				},
			},
		})

		consumer, err := NewEventConsumer(
			client,
			"auction-events",
			WithConsumerBlockTimeout(time.Second),
		)
		require.NoError(t, err)

		consumer.Start()
		defer consumer.Close()

		select {
		case got := <-consumer.Subscribe():
			assert.Equal(t, ev.Type, got.Type)
			assert.Equal(t, ev.PeriodID, got.PeriodID)
			assert.Equal(t, ev.Address, got.Address)
			assert.Equal(t, ev.Amount, got.Amount)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for event")
		}

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error handling", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetErr(redis.ErrClosed)

		consumer, err := NewEventConsumer(
			client,
			"auction-events",
			WithConsumerBlockTimeout(time.Second),
		)
		require.NoError(t, err)

		consumer.Start()
		defer consumer.Close()

		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("undecodable message skipped", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetVal([]redis.XStream{
			{
				Stream: "auction-events",
				Messages: []redis.XMessage{
					{
						ID: "1234-0",
						Values: map[string]interface{}{
							"type": "bid-placed",
							"data": "not-base64!!",
						},
					},
				},
			},
		})

		consumer, err := NewEventConsumer(
			client,
			"auction-events",
			WithConsumerBlockTimeout(time.Second),
		)
		require.NoError(t, err)

		consumer.Start()
		defer consumer.Close()

		select {
		case <-consumer.Subscribe():
			t.Fatal("should not receive undecodable event")
		case <-time.After(300 * time.Millisecond):
			// Expected timeout
		}

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty stream response", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXRead(&redis.XReadArgs{
			Streams: []string{"auction-events", "$"},
			Count:   1,
			Block:   time.Second,
		}).SetVal([]redis.XStream{})

		consumer, err := NewEventConsumer(
			client,
			"auction-events",
			WithConsumerBlockTimeout(time.Second),
		)
		require.NoError(t, err)

		consumer.Start()
		defer consumer.Close()

		select {
		case <-consumer.Subscribe():
			t.Fatal("should not receive event from empty stream")
		case <-time.After(300 * time.Millisecond):
			// Expected timeout
		}

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
