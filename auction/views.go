package auction

import (
	"time"

	"github.com/google/uuid"
)

// 唯讀查詢只取互斥鎖、不經過 reentrancy 守門，因此在對外轉帳期間
// 仍可讀取。代價是可能觀察到先行寫入的守門狀態(ended、claimed、
// 歸零的待退款餘額)：轉帳失敗時這些旗標會被回滾，讀取端不應把
// 單次讀到的旗標當成最終結果。

// Period 回傳指定期別的紀錄副本。
func (e *Engine) Period(periodID uint64) (Period, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	period, ok := e.periods[periodID]
	if !ok {
		return Period{}, false
	}
	return *period, true
}

// LatestPeriodID 回傳最新一期的編號，尚未建立任何期別時為 0。
func (e *Engine) LatestPeriodID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latestID
}

// ActivePeriod 回傳目前仍開放中的一期；所有期別都已結標時第二個
// 回傳值為 false。系統不變量保證同一時間最多只有一期開放。
func (e *Engine) ActivePeriod() (Period, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	period, ok := e.periods[e.latestID]
	if !ok || period.Ended {
		return Period{}, false
	}
	return *period, true
}

// RemainingTime 回傳該期距離截止的剩餘時間，已截止或已結標時為 0。
func (e *Engine) RemainingTime(periodID uint64) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	period, ok := e.periods[periodID]
	if !ok {
		return 0, ErrPeriodNotFound
	}
	if period.Ended {
		return 0, nil
	}
	remaining := period.EndTime.Sub(e.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// NextMinimumBid 回傳該期下一筆出價的最低可接受金額：
// 尚無出價時為 max(起標價, 全域下限)，已有出價時為
// max(最高價+最低加價額, 全域下限)。
func (e *Engine) NextMinimumBid(periodID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	period, ok := e.periods[periodID]
	if !ok {
		return 0, ErrPeriodNotFound
	}
	if period.HighestBidder == uuid.Nil {
		return max(period.StartingPrice, e.params.MinBidPrice), nil
	}
	inc, err := incrementOf(period.HighestBid, e.params.IncrementPercent)
	if err != nil {
		return 0, err
	}
	next, err := addChecked(period.HighestBid, inc)
	if err != nil {
		return 0, err
	}
	return max(next, e.params.MinBidPrice), nil
}

// PendingReturn 回傳 addr 可領回的退款餘額。
func (e *Engine) PendingReturn(addr uuid.UUID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.BalanceOf(addr)
}

// Item 回傳鑄造品的目前狀態副本。
func (e *Engine) Item(itemID uint64) (MintedItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Item(itemID)
}

// MintedCount 回傳已鑄造的商品總數。
func (e *Engine) MintedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.MintedCount()
}
