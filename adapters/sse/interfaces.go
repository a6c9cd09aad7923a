package sse

import "hammer/auction"

// IChannel 定義了 SSE 頻道的介面
type IChannel interface {
	// Subscribe 建立一個新的訂閱並返回接收事件的通道
	Subscribe() <-chan auction.Event
	// Unsubscribe 取消指定通道的訂閱
	Unsubscribe(ch <-chan auction.Event)
	// UnsubscribeAll 取消所有訂閱
	UnsubscribeAll()
	// Broadcast 將事件廣播給所有訂閱者
	Broadcast(ev auction.Event)
	// IsIdle 檢查是否沒有訂閱者
	IsIdle() bool
}

// IEventSource 提供來自上游(通常是 Redis Stream 尾隨消費者)的事件通道。
type IEventSource interface {
	Subscribe() <-chan auction.Event
}

// IConnectionManager 定義了 SSE 連線管理員的介面
type IConnectionManager interface {
	// Start 啟動 ConnectionManager，開始處理事件的接收與廣播。
	// 應在呼叫其他方法前先呼叫此方法。
	Start()
	// Done 停止 ConnectionManager，釋放所有資源。
	Done()
	// Subscribe 註冊並訂閱指定頻道，返回一個新的事件通道。
	Subscribe(channelName string) (<-chan auction.Event, error)
	// Publish 將事件推送到指定頻道的本地訂閱者。
	Publish(channelName string, ev auction.Event) error
	// Unsubscribe 取消訂閱指定頻道。
	Unsubscribe(channelName string, ch <-chan auction.Event)
}
