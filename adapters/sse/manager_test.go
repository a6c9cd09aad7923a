package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"hammer/adapters/sse"
	"hammer/auction"
)

func TestConnectionManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	cm := sse.NewConnectionManager()
	defer cm.Done()

	// 測試訂閱
	ch, err := cm.Subscribe("test_channel")
	assert.NoError(t, err)
	assert.NotNil(t, ch)

	// 測試發布事件
	ev := bidEvent(1, 100)
	go func() {
		assert.NoError(t, cm.Publish("test_channel", ev))
	}()

	select {
	case received := <-ch:
		assert.Equal(t, ev, received)
	case <-time.After(time.Second):
		t.Fatal("did not receive event in time")
	}

	// 測試取消訂閱
	cm.Unsubscribe("test_channel", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestConnectionManager_Subscriber(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newEventSource()
	cm := sse.NewConnectionManager(sse.WithSubscriber(source))
	cm.Start()
	defer cm.Done()

	all, err := cm.Subscribe(sse.TopicAll)
	assert.NoError(t, err)
	period, err := cm.Subscribe(sse.TopicForPeriod(7))
	assert.NoError(t, err)
	other, err := cm.Subscribe(sse.TopicForPeriod(8))
	assert.NoError(t, err)

	ev := bidEvent(7, 250)
	go func() {
		source.ch <- ev
		close(source.ch)
	}()

	// TopicAll 與對應拍賣期的頻道都收到事件，廣播順序為 TopicAll 在先
	for _, sub := range []struct {
		name string
		ch   <-chan auction.Event
	}{{"all", all}, {"period", period}} {
		select {
		case received := <-sub.ch:
			assert.Equal(t, ev, received, sub.name)
		case <-time.After(time.Second):
			t.Fatalf("did not receive event on %s channel in time", sub.name)
		}
	}

	// 其他拍賣期的頻道不會收到事件
	select {
	case got := <-other:
		t.Fatalf("unexpected event on unrelated channel: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectionManager_Done(t *testing.T) {
	defer goleak.VerifyNone(t)

	cm := sse.NewConnectionManager()

	ch, err := cm.Subscribe("test_channel")
	assert.NoError(t, err)

	cm.Done()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Done")

	// Done 之後的操作回報取消
	_, err = cm.Subscribe("test_channel")
	assert.Error(t, err)
	assert.Error(t, cm.Publish("test_channel", bidEvent(1, 1)))

	// 重複 Done 不應出錯
	cm.Done()
}
