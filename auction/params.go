package auction

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/google/uuid"
)

// Params 是拍賣系統的可調參數，僅能由 owner 透過 Engine 上的 setter 修改。
// 所有 setter 在提交前都會驗證正值與非零位址的限制。
type Params struct {
	// Duration 是每一期拍賣從建立到截止的固定時長
	Duration time.Duration
	// MintInterval 是兩次成功鑄造之間的最小間隔
	MintInterval time.Duration
	// IncrementPercent 是最低加價百分比(整數)
	IncrementPercent uint64
	// MinBidPrice 是全域出價下限
	MinBidPrice uint64
	// Treasury 是拍賣收益的入帳位址
	Treasury uuid.UUID
	// SpecialModulus 決定每隔幾件鑄造品改發給特殊受贈者(例如 10)
	SpecialModulus uint64
	// SpecialRecipients 是特殊受贈者清單，可為空
	SpecialRecipients []uuid.UUID
}

// DefaultParams 回傳來源設計使用的預設參數(24 小時一期、5% 加價、每 10 件特殊配發)。
func DefaultParams(treasury uuid.UUID) Params {
	return Params{
		Duration:         24 * time.Hour,
		MintInterval:     24 * time.Hour,
		IncrementPercent: 5,
		MinBidPrice:      1,
		Treasury:         treasury,
		SpecialModulus:   10,
	}
}

// Validate 檢查整組參數是否合法。
func (p Params) Validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("duration must be positive: %w", ErrInvalidParam)
	}
	if p.MintInterval <= 0 {
		return fmt.Errorf("mint interval must be positive: %w", ErrInvalidParam)
	}
	if p.IncrementPercent == 0 {
		return fmt.Errorf("increment percent must be positive: %w", ErrInvalidParam)
	}
	if p.MinBidPrice == 0 {
		return fmt.Errorf("minimum bid price must be positive: %w", ErrInvalidParam)
	}
	if p.Treasury == uuid.Nil {
		return fmt.Errorf("treasury address must not be zero: %w", ErrInvalidParam)
	}
	if p.SpecialModulus == 0 {
		return fmt.Errorf("special modulus must be positive: %w", ErrInvalidParam)
	}
	return nil
}

// addChecked 回傳 a+b，溢位時回傳 ErrAmountOverflow。
func addChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// incrementOf 計算 amount 的最低加價額 floor(amount*percent/100)，
// 以 128 位元中間值避免乘法溢位。
func incrementOf(amount, percent uint64) (uint64, error) {
	hi, lo := bits.Mul64(amount, percent)
	// 商超出 64 位元時 bits.Div64 會 panic，先行擋下
	if hi >= 100 {
		return 0, ErrAmountOverflow
	}
	quo, _ := bits.Div64(hi, lo, 100)
	return quo, nil
}
