package sse_test

import (
	"io"
	"log"
	"time"

	"hammer/auction"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

func bidEvent(periodID, amount uint64) auction.Event {
	return auction.Event{
		Type:     auction.EventBidPlaced,
		PeriodID: periodID,
		Amount:   amount,
		At:       time.Unix(1700000000, 0).UTC(),
	}
}

// eventSource 是一個以普通 channel 實作的上游事件來源。
type eventSource struct {
	ch chan auction.Event
}

func newEventSource() *eventSource {
	return &eventSource{ch: make(chan auction.Event)}
}

func (s *eventSource) Subscribe() <-chan auction.Event {
	return s.ch
}
