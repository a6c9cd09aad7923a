package auction

import "github.com/google/uuid"

// EscrowLedger 紀錄每個位址可領回的退款餘額。
// 餘額在出價被超越時由生命週期累加，領回時一次歸零；
// 同一位址跨多期被超越的金額會累積在同一筆餘額上。
//
// EscrowLedger 本身不做並行保護，所有讀寫都必須發生在
// Engine 的單一寫入者臨界區內。
type EscrowLedger struct {
	balances map[uuid.UUID]uint64
}

// NewEscrowLedger 建立一個空的退款帳本。
func NewEscrowLedger() *EscrowLedger {
	return &EscrowLedger{balances: make(map[uuid.UUID]uint64)}
}

// Credit 將 amount 累加到 addr 的待退款餘額，溢位時回傳 ErrAmountOverflow
// 且不改動任何狀態。
func (l *EscrowLedger) Credit(addr uuid.UUID, amount uint64) error {
	sum, err := addChecked(l.balances[addr], amount)
	if err != nil {
		return err
	}
	l.balances[addr] = sum
	return nil
}

// BalanceOf 回傳 addr 目前可領回的餘額。
func (l *EscrowLedger) BalanceOf(addr uuid.UUID) uint64 {
	return l.balances[addr]
}

// take 取出並歸零 addr 的餘額。呼叫端(Engine.Withdraw)必須在對外轉帳
// 之前呼叫本方法，轉帳失敗時再以 restore 回滾。
func (l *EscrowLedger) take(addr uuid.UUID) uint64 {
	amount := l.balances[addr]
	delete(l.balances, addr)
	return amount
}

// restore 回復一筆先前被 take 取出的餘額。
func (l *EscrowLedger) restore(addr uuid.UUID, amount uint64) {
	if amount > 0 {
		l.balances[addr] = amount
	}
}
