package redis

import (
	"context"

	"hammer/auction"
)

// IEventProducer 定義了事件發布端的操作介面
type IEventProducer interface {
	Start()
	Publish(ev auction.Event) error
	Close()
}

// IEventConsumer 定義了事件尾隨消費端的操作介面(即時廣播用)
type IEventConsumer interface {
	Start()
	Subscribe() <-chan auction.Event
	Close()
}

// IEventGroupConsumer 定義了 consumer group 消費端的操作介面(封存 worker 用)
type IEventGroupConsumer interface {
	Start() error
	Subscribe() <-chan *Message
	Close() error
}

// IAutoRenewMutex 定義了 AutoRenewMutex 的操作介面
type IAutoRenewMutex interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}
