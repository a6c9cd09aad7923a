package auction

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 可調參數的 setter 皆僅限 owner 呼叫，提交前驗證正值與非零位址，
// 成功時發出一個 param-updated 事件供外部稽核。
// 參數變更只影響之後建立的期別；已建立的期別在建立當下就固定了
// 自己的截止時間與價格條件。

func (e *Engine) setParam(caller uuid.UUID, name, value string, apply func(*Params)) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if caller != e.owner {
		return ErrUnauthorized
	}
	next := e.params
	apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	e.params = next

	e.publish(Event{
		Type:  EventParamUpdated,
		Param: name,
		Value: value,
	})
	return nil
}

// SetDuration 調整之後每一期拍賣的時長。
func (e *Engine) SetDuration(caller uuid.UUID, d time.Duration) error {
	return e.setParam(caller, "duration", d.String(), func(p *Params) { p.Duration = d })
}

// SetMintInterval 調整兩次鑄造之間的最小間隔。
func (e *Engine) SetMintInterval(caller uuid.UUID, d time.Duration) error {
	return e.setParam(caller, "mintInterval", d.String(), func(p *Params) { p.MintInterval = d })
}

// SetIncrementPercent 調整最低加價百分比。
func (e *Engine) SetIncrementPercent(caller uuid.UUID, percent uint64) error {
	return e.setParam(caller, "incrementPercent", strconv.FormatUint(percent, 10), func(p *Params) { p.IncrementPercent = percent })
}

// SetMinBidPrice 調整全域出價下限。
func (e *Engine) SetMinBidPrice(caller uuid.UUID, price uint64) error {
	return e.setParam(caller, "minBidPrice", strconv.FormatUint(price, 10), func(p *Params) { p.MinBidPrice = price })
}

// SetTreasury 調整收益入帳位址。
func (e *Engine) SetTreasury(caller uuid.UUID, treasury uuid.UUID) error {
	return e.setParam(caller, "treasury", treasury.String(), func(p *Params) { p.Treasury = treasury })
}

// SetSpecialRecipients 調整特殊受贈者清單，清單可為空(停用特殊配發)。
func (e *Engine) SetSpecialRecipients(caller uuid.UUID, recipients []uuid.UUID) error {
	for _, r := range recipients {
		if r == uuid.Nil {
			return fmt.Errorf("special recipient must not be zero: %w", ErrInvalidParam)
		}
	}
	names := make([]string, len(recipients))
	for i, r := range recipients {
		names[i] = r.String()
	}
	return e.setParam(caller, "specialRecipients", strings.Join(names, ","), func(p *Params) {
		p.SpecialRecipients = append([]uuid.UUID(nil), recipients...)
	})
}

// Params 回傳目前的參數副本。
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.params
	p.SpecialRecipients = append([]uuid.UUID(nil), p.SpecialRecipients...)
	return p
}
