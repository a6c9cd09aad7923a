package auction

import (
	"time"

	"github.com/google/uuid"
)

// EventType 標記一個狀態轉移事件的類別。
type EventType string

const (
	EventPeriodCreated  EventType = "period-created"
	EventBidPlaced      EventType = "bid-placed"
	EventPeriodClosed   EventType = "period-closed"
	EventItemClaimed    EventType = "item-claimed"
	EventFundsWithdrawn EventType = "funds-withdrawn"
	EventParamUpdated   EventType = "param-updated"
)

// Event 代表一次已提交的狀態轉移對外發布的事件。
// 每次觸發狀態轉移的操作在狀態寫入完成後恰好發出一次，
// 欄位依事件類別填入，未使用的欄位保持零值。
type Event struct {
	Type     EventType `msgpack:"type" json:"type"`
	PeriodID uint64    `msgpack:"periodId,omitempty" json:"periodId,omitempty"`
	ItemID   uint64    `msgpack:"itemId,omitempty" json:"itemId,omitempty"`

	// bid-placed / period-closed / item-claimed / funds-withdrawn
	Address uuid.UUID `msgpack:"address,omitempty" json:"address,omitempty"`
	Amount  uint64    `msgpack:"amount,omitempty" json:"amount,omitempty"`

	// period-created
	StartTime     time.Time `msgpack:"startTime,omitempty" json:"startTime,omitempty"`
	EndTime       time.Time `msgpack:"endTime,omitempty" json:"endTime,omitempty"`
	StartingPrice uint64    `msgpack:"startingPrice,omitempty" json:"startingPrice,omitempty"`

	// param-updated
	Param string `msgpack:"param,omitempty" json:"param,omitempty"`
	Value string `msgpack:"value,omitempty" json:"value,omitempty"`

	At time.Time `msgpack:"at" json:"at"`
}

// EmitFunc 接收已提交的事件。實作不可回呼狀態機的任何變更操作。
type EmitFunc func(Event)
