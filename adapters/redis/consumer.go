package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hammer/auction"
)

var (
	ErrProducerClosed = errors.New("producer is closed")
	ErrConsumerClosed = errors.New("consumer is closed")
)

type consumerOptions struct {
	logger       *slog.Logger
	bufferSize   int
	blockTimeout time.Duration
}

type ConsumerOption func(*consumerOptions)

// WithConsumerLogger 設置日誌記錄器
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		o.logger = logger
	}
}

// WithConsumerBufferSize 設置下游channel的緩衝大小
func WithConsumerBufferSize(size int) ConsumerOption {
	return func(o *consumerOptions) {
		o.bufferSize = size
	}
}

// WithConsumerBlockTimeout 設置阻塞讀取超時時間
func WithConsumerBlockTimeout(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.blockTimeout = d
	}
}

// EventConsumer 從 Redis Stream 尾隨讀取事件，供即時廣播使用。
// 只讀取啟動之後的新事件，不回放歷史。
type EventConsumer struct {
	client     *redis.Client
	stream     string
	lastID     string
	downStream chan auction.Event
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	logger     *slog.Logger
	options    consumerOptions
}

func NewEventConsumer(client *redis.Client, stream string, opts ...ConsumerOption) (IEventConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := consumerOptions{
		logger:       slog.Default(),
		bufferSize:   100,
		blockTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &EventConsumer{
		client:  client,
		stream:  stream,
		lastID:  "$",
		closed:  true,
		logger:  options.logger.With(slog.String("caller", "EventConsumer"), slog.String("stream", stream)),
		options: options,
	}, nil
}

func (c *EventConsumer) Start() {
	if !c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.downStream = make(chan auction.Event, c.options.bufferSize)
	c.closed = false
	c.cancelFunc = cancel
	c.logger.Info("starting event consumer")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.logger.Info("event consumer goroutine stopped")
		defer close(c.downStream)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				message, err := c.fetchNextMessage(ctx)
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if errors.Is(err, context.Canceled) {
						return
					}
					c.logger.Error("fetch event error", slog.Any("error", err))
					continue
				}

				ev, err := DecodeEvent(message.Values)
				if err != nil {
					c.logger.Error("failed to decode event",
						slog.String("messageId", message.ID),
						slog.Any("error", err))
					continue
				}

				select {
				case <-ctx.Done():
					return
				case c.downStream <- ev:
					c.logger.Debug("event sent to downstream", slog.String("messageId", message.ID))
				}
			}
		}
	}()
}

func (c *EventConsumer) fetchNextMessage(ctx context.Context) (redis.XMessage, error) {
	streams, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{c.stream, c.lastID},
		Count:   1,
		Block:   c.options.blockTimeout,
	}).Result()
	if err != nil {
		return redis.XMessage{}, err
	}

	if len(streams) > 0 && len(streams[0].Messages) > 0 {
		message := streams[0].Messages[0]
		c.lastID = message.ID
		return message, nil
	}
	return redis.XMessage{}, redis.Nil
}

// Subscribe 訂閱事件流
func (c *EventConsumer) Subscribe() <-chan auction.Event {
	return c.downStream
}

// Close 關閉消費者
func (c *EventConsumer) Close() {
	if c.closed {
		return
	}
	c.logger.Info("closing event consumer")
	c.closed = true
	c.cancelFunc()
	c.wg.Wait()
	c.logger.Info("event consumer closed")
}
