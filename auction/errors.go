package auction

import "errors"

// 狀態機的錯誤皆為 sentinel error，呼叫端可以透過 errors.Is 判斷錯誤類別，
// 或透過 Code 取得穩定的錯誤代碼字串。
var (
	// 授權錯誤
	ErrUnauthorized = errors.New("auction: unauthorized caller")

	// 狀態錯誤
	ErrPreviousPeriodOpen = errors.New("auction: previous period is still open")
	ErrAlreadyClosed      = errors.New("auction: period already closed")
	ErrNotYetClosable     = errors.New("auction: period is not yet closable")
	ErrAlreadyClaimed     = errors.New("auction: item already claimed")
	ErrTooSoon            = errors.New("auction: mint interval has not elapsed")
	ErrReentrantCall      = errors.New("auction: reentrant call rejected")

	// 驗證錯誤
	ErrBelowFloor         = errors.New("auction: bid below global minimum price")
	ErrBelowStartingPrice = errors.New("auction: bid below starting price")
	ErrBelowMinIncrement  = errors.New("auction: bid below minimum increment")
	ErrPeriodExpired      = errors.New("auction: period deadline has passed")
	ErrNotWinner          = errors.New("auction: caller is not the winning bidder")
	ErrInvalidParam       = errors.New("auction: invalid parameter value")
	ErrAmountOverflow     = errors.New("auction: amount overflows")

	// 查無資料錯誤
	ErrPeriodNotFound = errors.New("auction: period not found")
	ErrItemNotFound   = errors.New("auction: minted item not found")

	// 轉帳錯誤，整個操作會原子性地回滾
	ErrNothingToWithdraw = errors.New("auction: nothing to withdraw")
	ErrTransferFailed    = errors.New("auction: outbound transfer failed")
	ErrPayoutFailed      = errors.New("auction: proceeds payout failed")
)

// codes 將 sentinel error 映射到對外的錯誤代碼。
// 代碼字串是對客戶端的穩定契約，不可隨意更名。
var codes = map[error]string{
	ErrUnauthorized:       "Unauthorized",
	ErrPreviousPeriodOpen: "PreviousPeriodOpen",
	ErrAlreadyClosed:      "AlreadyClosed",
	ErrNotYetClosable:     "NotYetClosable",
	ErrAlreadyClaimed:     "AlreadyClaimed",
	ErrTooSoon:            "TooSoon",
	ErrReentrantCall:      "ReentrantCall",
	ErrBelowFloor:         "BelowFloor",
	ErrBelowStartingPrice: "BelowStartingPrice",
	ErrBelowMinIncrement:  "BelowMinIncrement",
	ErrPeriodExpired:      "PeriodExpired",
	ErrNotWinner:          "NotWinner",
	ErrInvalidParam:       "InvalidParam",
	ErrAmountOverflow:     "AmountOverflow",
	ErrPeriodNotFound:     "NotFound",
	ErrItemNotFound:       "NotFound",
	ErrNothingToWithdraw:  "NothingToWithdraw",
	ErrTransferFailed:     "TransferFailed",
	ErrPayoutFailed:       "PayoutFailed",
}

// Code 回傳錯誤對應的穩定代碼，未知錯誤回傳 "Internal"。
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "Internal"
}
