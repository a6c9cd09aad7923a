package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hammer/adapters/sse"
)

func TestChannel(t *testing.T) {
	ch := sse.NewChannel()

	// 測試訂閱
	sub := ch.Subscribe()
	assert.NotNil(t, sub)

	// 測試廣播事件
	ev := bidEvent(1, 100)
	go ch.Broadcast(ev)

	select {
	case received := <-sub:
		assert.Equal(t, ev, received)
	case <-time.After(time.Second):
		t.Fatal("did not receive event in time")
	}

	// 測試取消訂閱
	ch.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok, "channel should be closed")

	// 測試 IsIdle
	assert.True(t, ch.IsIdle(), "channel should be idle")
}

func TestChannelStalledSubscriber(t *testing.T) {
	ch := sse.NewChannel()
	stalled := ch.Subscribe()
	active := ch.Subscribe()

	// 塞滿停滯訂閱者的緩衝，廣播不能因此卡住
	for i := 0; i < 32; i++ {
		ch.Broadcast(bidEvent(1, uint64(i+100)))
	}

	done := make(chan struct{})
	go func() {
		ch.Broadcast(bidEvent(2, 999))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stalled subscriber")
	}

	// 活躍的訂閱者照常依序收到緩衝內的事件
	received := <-active
	assert.Equal(t, bidEvent(1, 100), received)

	ch.Unsubscribe(stalled)
	ch.Unsubscribe(active)
}
