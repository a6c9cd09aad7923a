package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Bank 是狀態機對外的資金託管介面。來源設計中出價款項由合約自身持有，
// 在服務化的實作裡改由 Bank 明確承接：Collect 在出價被接受時把款項
// 收進託管帳戶，Payout 在結標、退款領回時把款項匯出。
//
// 任一方法回傳錯誤時，呼叫中的狀態轉移會整體回滾，Bank 的實作必須
// 保證失敗時自身也沒有留下部分效果。實作不可回呼 Engine 的變更操作，
// 否則會收到 ErrReentrantCall。
type Bank interface {
	Collect(ctx context.Context, from uuid.UUID, amount uint64) error
	Payout(ctx context.Context, to uuid.UUID, amount uint64) error
}

var ErrInsufficientFunds = errors.New("auction: insufficient funds")

// MemoryBank 是 Bank 的參考實作，用於測試與單機部署。
// 它維護一份帳戶餘額與託管池，所有轉帳皆為原子操作。
type MemoryBank struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]uint64
	custody  uint64
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{accounts: make(map[uuid.UUID]uint64)}
}

// Deposit 從外部為帳戶入金。
func (b *MemoryBank) Deposit(addr uuid.UUID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sum, err := addChecked(b.accounts[addr], amount)
	if err != nil {
		return err
	}
	b.accounts[addr] = sum
	return nil
}

// Collect 將 from 的款項收進託管池，餘額不足時失敗且不改動任何帳戶。
func (b *MemoryBank) Collect(ctx context.Context, from uuid.UUID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accounts[from] < amount {
		return fmt.Errorf("collect %d from %s: %w", amount, from, ErrInsufficientFunds)
	}
	custody, err := addChecked(b.custody, amount)
	if err != nil {
		return err
	}
	b.accounts[from] -= amount
	b.custody = custody
	return nil
}

// Payout 從託管池匯出款項給 to。
func (b *MemoryBank) Payout(ctx context.Context, to uuid.UUID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.custody < amount {
		return fmt.Errorf("payout %d to %s: %w", amount, to, ErrInsufficientFunds)
	}
	sum, err := addChecked(b.accounts[to], amount)
	if err != nil {
		return err
	}
	b.custody -= amount
	b.accounts[to] = sum
	return nil
}

// BalanceOf 回傳帳戶餘額。
func (b *MemoryBank) BalanceOf(addr uuid.UUID) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[addr]
}

// Custody 回傳託管池目前持有的總額。
func (b *MemoryBank) Custody() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.custody
}
