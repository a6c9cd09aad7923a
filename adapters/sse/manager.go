package sse

import (
	"context"
	"log/slog"
	"sync"

	"hammer/auction"
)

// connectionManager 管理多個 SSE 頻道的訂閱與廣播。
// 事件來源通常是 Redis Stream 的尾隨消費者，讓多個服務實例能夠協同運作;
// 沒有設定事件來源時則只做本地的發布與訂閱。
type connectionManager struct {
	logger *slog.Logger

	mu     sync.RWMutex   // 保護 active 和 channels 的讀寫
	wg     sync.WaitGroup // 用於等待所有 goroutine 完成
	active bool           // 標記 manager 是否正在運作中

	subscriber IEventSource        // 上游事件來源，可為 nil
	channels   map[string]IChannel // 儲存所有活躍的頻道
}

type ConnectionManagerOption func(*connectionManager)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) ConnectionManagerOption {
	return func(cm *connectionManager) {
		cm.logger = logger
	}
}

// WithSubscriber 設置上游事件來源，Start 之後收到的事件會
// 廣播到對應拍賣期的頻道與 TopicAll。
func WithSubscriber(source IEventSource) ConnectionManagerOption {
	return func(cm *connectionManager) {
		cm.subscriber = source
	}
}

// NewConnectionManager 建立一個新的連線管理器。
func NewConnectionManager(opts ...ConnectionManagerOption) IConnectionManager {
	cm := &connectionManager{
		logger:   slog.Default(),
		channels: make(map[string]IChannel),
		active:   true,
	}
	for _, opt := range opts {
		opt(cm)
	}
	cm.logger = cm.logger.With(slog.String("caller", "ConnectionManager"))
	return cm
}

// Start 啟動連線管理器，開始處理事件的接收與廣播。
// 應在呼叫其他方法前先呼叫此方法。
func (cm *connectionManager) Start() {
	if cm.subscriber == nil {
		return
	}

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for ev := range cm.subscriber.Subscribe() {
			cm.dispatch(ev)
		}
	}()
}

// dispatch 將事件送到對應拍賣期的頻道與 TopicAll 頻道。
func (cm *connectionManager) dispatch(ev auction.Event) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if channel, ok := cm.channels[TopicAll]; ok {
		channel.Broadcast(ev)
	}
	if ev.PeriodID == 0 {
		return
	}
	if channel, ok := cm.channels[TopicForPeriod(ev.PeriodID)]; ok {
		channel.Broadcast(ev)
	}
}

// Done 停止連線管理器的運作。
func (cm *connectionManager) Done() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return
	}

	cm.active = false
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
// channelName: 要訂閱的頻道名稱
// 返回: 用於接收事件的唯讀通道，以及可能的錯誤
func (cm *connectionManager) Subscribe(channelName string) (<-chan auction.Event, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel()
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Publish 將事件發布到指定頻道的本地訂閱者。
func (cm *connectionManager) Publish(channelName string, ev auction.Event) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.active {
		return context.Canceled
	}

	if channel, ok := cm.channels[channelName]; ok {
		channel.Broadcast(ev)
	}
	return nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager) Unsubscribe(channelName string, ch <-chan auction.Event) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}
