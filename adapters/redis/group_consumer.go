package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"hammer/auction"
)

// Message 封裝一個事件與 ack 所需的資料。
// 封存 worker 處理完成後必須呼叫 Done，處理失敗則呼叫 Fail
// 將事件移入 dead-letter stream。
type Message struct {
	Event auction.Event

	client    *redis.Client
	done      bool
	messageID string
	stream    string
	group     string
	raw       map[string]any
}

// Done 確認事件已處理完成
func (m *Message) Done(ctx context.Context) error {
	const op = "Message.Done"
	if m.done {
		return nil
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.messageID).Err(); err != nil {
		return fmt.Errorf("[%s] failed to ack message: %w", op, err)
	}
	m.done = true
	return nil
}

// Fail 確認事件處理失敗，移入 dead-letter stream
func (m *Message) Fail(ctx context.Context, failErr error) error {
	const op = "Message.Fail"
	if m.done {
		return nil
	}

	m.raw["error"] = failErr.Error()
	if err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.stream + ":dead-letter",
		Values: m.raw,
	}).Err(); err != nil {
		return fmt.Errorf("[%s] failed to move message to dead letter queue: %w", op, err)
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.messageID).Err(); err != nil {
		return fmt.Errorf("[%s] failed to ack failed message: %w", op, err)
	}
	m.done = true
	return nil
}

type groupConsumerOptions struct {
	logger       *slog.Logger
	bufferSize   int
	blockTimeout time.Duration
}

type GroupConsumerOption func(*groupConsumerOptions)

// WithGroupConsumerLogger 設置日誌記錄器
func WithGroupConsumerLogger(logger *slog.Logger) GroupConsumerOption {
	return func(o *groupConsumerOptions) {
		o.logger = logger
	}
}

// WithGroupConsumerBufferSize 設置下游channel的緩衝大小
func WithGroupConsumerBufferSize(size int) GroupConsumerOption {
	return func(o *groupConsumerOptions) {
		o.bufferSize = size
	}
}

// WithGroupConsumerBlockTimeout 設置阻塞讀取超時時間
func WithGroupConsumerBlockTimeout(d time.Duration) GroupConsumerOption {
	return func(o *groupConsumerOptions) {
		o.blockTimeout = d
	}
}

// EventGroupConsumer 以 consumer group 的形式消費事件流，
// 用於封存 worker：配合 Message 的 Done/Fail 確認機制，
// 事件至少會被成功處理一次。重啟時優先回放自己的 pending 事件。
type EventGroupConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	downStream    chan *Message
	cancelFunc    context.CancelFunc
	wg            sync.WaitGroup
	closed        bool
	logger        *slog.Logger
	pendingMsgIds []string
	options       groupConsumerOptions
}

func NewEventGroupConsumer(client *redis.Client, stream, group, consumer string, opts ...GroupConsumerOption) (IEventGroupConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("stream, group and consumer cannot be empty")
	}

	// 默認選項
	options := groupConsumerOptions{
		logger:       slog.Default(),
		bufferSize:   1,
		blockTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &EventGroupConsumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		closed:   true,
		logger: options.logger.With(
			slog.String("caller", "EventGroupConsumer"),
			slog.String("stream", stream),
			slog.String("group", group),
			slog.String("consumer", consumer),
		),
		options: options,
	}, nil
}

func (s *EventGroupConsumer) Start() error {
	if !s.closed {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.downStream = make(chan *Message, s.options.bufferSize)
	s.cancelFunc = cancel
	s.closed = false
	s.logger.Info("starting event group consumer")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.Info("event group consumer goroutine stopped")
		defer close(s.downStream)

		// 先回放上次沒有確認完成的事件
		if err := s.fetchPendingMessageIds(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("initial pending messages fetch failed", slog.Any("error", err))
		}

		for {
			if ctx.Err() != nil {
				return
			}
			message, err := s.fetchNextMessage(ctx)
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				// 一般是與 redis 之間的通訊異常，重試即可
				s.logger.Error("fetch message error", slog.Any("error", err))
				continue
			}

			ev, err := DecodeEvent(message.Values)
			if err != nil {
				// 解碼失敗不會因為重試而成功，直接移入 dead-letter
				s.logger.Error("failed to decode event",
					slog.String("messageId", message.ID),
					slog.Any("error", err))
				if dlErr := s.moveToDeadLetter(ctx, message); dlErr != nil {
					s.logger.Error("error moving message to dead letter",
						slog.String("messageId", message.ID),
						slog.Any("error", dlErr))
				}
				continue
			}

			msg := &Message{
				Event:     ev,
				messageID: message.ID,
				stream:    s.stream,
				group:     s.group,
				client:    s.client,
				raw:       message.Values,
			}
			select {
			case <-ctx.Done():
				return
			case s.downStream <- msg:
			}
		}
	}()
	return nil
}

func (s *EventGroupConsumer) fetchPendingMessageIds(ctx context.Context) error {
	s.pendingMsgIds = s.pendingMsgIds[:0]
	lastId := "-"

	for {
		pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream:   s.stream,
			Group:    s.group,
			Consumer: s.consumer,
			Start:    lastId,
			End:      "+",
			Count:    100,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return fmt.Errorf("error getting pending messages: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		for _, p := range pending {
			s.pendingMsgIds = append(s.pendingMsgIds, p.ID)
		}
		lastId = pending[len(pending)-1].ID
		if len(pending) < 100 {
			break
		}
	}

	s.logger.Info("fetched pending message IDs", slog.Int("count", len(s.pendingMsgIds)))
	return nil
}

func (s *EventGroupConsumer) fetchNextMessage(ctx context.Context) (redis.XMessage, error) {
	if len(s.pendingMsgIds) > 0 {
		id := s.pendingMsgIds[0]
		s.pendingMsgIds = s.pendingMsgIds[1:]
		messages, err := s.client.XRangeN(ctx, s.stream, id, id, 1).Result()
		if err != nil {
			return redis.XMessage{}, err
		}
		if len(messages) == 0 {
			return redis.XMessage{}, redis.Nil
		}
		return messages[0], nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    1,
		Block:    s.options.blockTimeout,
	}).Result()
	if err != nil {
		return redis.XMessage{}, err
	}
	if len(streams) > 0 && len(streams[0].Messages) > 0 {
		return streams[0].Messages[0], nil
	}
	return redis.XMessage{}, redis.Nil
}

func (s *EventGroupConsumer) moveToDeadLetter(ctx context.Context, message redis.XMessage) error {
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream + ":dead-letter",
		Values: message.Values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to move message to dead letter queue: %w", err)
	}
	return s.client.XAck(ctx, s.stream, s.group, message.ID).Err()
}

// Subscribe 訂閱事件流，返回 Message 通道
func (s *EventGroupConsumer) Subscribe() <-chan *Message {
	return s.downStream
}

func (s *EventGroupConsumer) Close() error {
	if s.closed {
		return nil
	}
	s.logger.Info("closing event group consumer")
	s.closed = true
	s.cancelFunc()
	s.wg.Wait()
	s.logger.Info("event group consumer closed gracefully")
	return nil
}
