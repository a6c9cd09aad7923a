package sse

import (
	"sync"

	"hammer/auction"
)

// Channel 用於管理針對某個主題 (Topic) 的所有訂閱者，
// 並將接收到的事件廣播給所有訂閱者。
type Channel struct {
	subscribers map[<-chan auction.Event]chan<- auction.Event
	mu          sync.RWMutex
}

// NewChannel creates a new SSE channel.
func NewChannel() IChannel {
	return &Channel{
		subscribers: make(map[<-chan auction.Event]chan<- auction.Event),
	}
}

// subscriberBufferSize 是每個訂閱者通道的緩衝大小，
// 超過緩衝還來不及消化的訂閱者會漏接事件。
const subscriberBufferSize = 16

// Subscribe 建立一個新的通道，將其加入 subscribers，並回傳唯讀通道給呼叫者。
func (c *Channel) Subscribe() <-chan auction.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan auction.Event, subscriberBufferSize)
	c.subscribers[ch] = ch
	return ch
}

// Unsubscribe 從 subscribers 中移除指定的通道，並關閉該通道。
func (c *Channel) Unsubscribe(ch <-chan auction.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if writeCh, exists := c.subscribers[ch]; exists {
		delete(c.subscribers, ch)
		close(writeCh)
	}
}

// UnsubscribeAll 關閉所有訂閱者的通道並清空訂閱清單。
func (c *Channel) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, writeCh := range c.subscribers {
		close(writeCh)
	}
	clear(c.subscribers)
}

// Broadcast 將事件廣播給所有仍在訂閱清單中的通道。
// 緩衝已滿的訂閱者直接跳過，單一停滯的連線不能拖住整條廣播路徑。
func (c *Channel) Broadcast(ev auction.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, writeCh := range c.subscribers {
		select {
		case writeCh <- ev:
		default:
		}
	}
}

// IsIdle 判斷 subscribers 是否為空。
func (c *Channel) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers) == 0
}
