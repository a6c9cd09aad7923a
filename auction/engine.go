package auction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Period 是一期拍賣的完整紀錄。
// Ended 與 Claimed 都是單向的 false→true 旗標；一旦 Ended 為真，
// HighestBid 與 HighestBidder 不再改變。
type Period struct {
	ID            uint64
	ItemID        uint64
	StartTime     time.Time
	EndTime       time.Time
	StartingPrice uint64
	HighestBid    uint64
	HighestBidder uuid.UUID
	Ended         bool
	Claimed       bool
}

// Engine 是拍賣狀態機的單一寫入者。所有狀態轉移(建立、出價、結標、
// 領取、提領)都在同一個臨界區內循序執行，轉移之間不會交錯。
//
// 對外轉帳(Bank 呼叫)期間會暫時釋放互斥鎖但保留 entered 旗標，
// 因此從轉帳回呼巢狀進入任何變更操作都會得到 ErrReentrantCall，
// 而不是死鎖。會造成重複效果的守門狀態(餘額、ended、claimed)一律
// 在對外轉帳之前先行寫入，轉帳失敗時再明確回滾，整個轉移不留下
// 部分效果。
type Engine struct {
	mu      sync.Mutex
	entered bool

	owner  uuid.UUID
	self   uuid.UUID
	params Params

	gate   *MintingGate
	ledger *EscrowLedger
	bank   Bank
	emit   EmitFunc
	now    func() time.Time

	periods      map[uint64]*Period
	latestID     uint64
	nextPeriodID uint64
}

type EngineOption func(*Engine)

// WithClock 注入時鐘，測試用。
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithEmitFunc 註冊事件接收函數。
func WithEmitFunc(emit EmitFunc) EngineOption {
	return func(e *Engine) {
		e.emit = emit
	}
}

// WithSelfIdentity 指定狀態機自身的託管身分，未指定時隨機產生。
func WithSelfIdentity(self uuid.UUID) EngineOption {
	return func(e *Engine) {
		e.self = self
	}
}

// withPick 注入鑄造閘門的特殊受贈者選擇函數，測試用。
func withPick(pick func(n int) int) EngineOption {
	return func(e *Engine) {
		e.gate.pick = pick
	}
}

// NewEngine 建立拍賣狀態機。owner 是唯一可以修改參數與提前結標的
// 特權身分，bank 承接所有資金進出。
func NewEngine(owner uuid.UUID, params Params, bank Bank, opts ...EngineOption) (*Engine, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("owner address must not be zero: %w", ErrInvalidParam)
	}
	if bank == nil {
		return nil, fmt.Errorf("bank must not be nil: %w", ErrInvalidParam)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		owner:        owner,
		self:         uuid.New(),
		params:       params,
		ledger:       NewEscrowLedger(),
		bank:         bank,
		now:          time.Now,
		periods:      make(map[uint64]*Period),
		nextPeriodID: 1,
	}
	e.gate = NewMintingGate(e.self)
	for _, opt := range opts {
		opt(e)
	}
	e.gate.authorized = e.self
	return e, nil
}

// Owner 回傳特權身分。
func (e *Engine) Owner() uuid.UUID { return e.owner }

// Self 回傳狀態機的託管身分(鑄造品在結標領取前的持有者)。
func (e *Engine) Self() uuid.UUID { return e.self }

// begin 進入狀態轉移臨界區。已有轉移在進行中(含對外轉帳期間的巢狀
// 呼叫)時回傳 ErrReentrantCall。
func (e *Engine) begin() error {
	e.mu.Lock()
	if e.entered {
		e.mu.Unlock()
		return ErrReentrantCall
	}
	e.entered = true
	return nil
}

func (e *Engine) end() {
	e.entered = false
	e.mu.Unlock()
}

// call 在釋放互斥鎖的情況下執行對外轉帳，entered 旗標在期間維持為真。
func (e *Engine) call(fn func() error) error {
	e.mu.Unlock()
	err := fn()
	e.mu.Lock()
	return err
}

func (e *Engine) publish(ev Event) {
	if e.emit != nil {
		ev.At = e.now()
		e.emit(ev)
	}
}

// Create 建立新的一期拍賣。僅限 owner 直接呼叫；一般呼叫者請使用
// CreateNext。前一期尚未結標時失敗。
func (e *Engine) Create(caller uuid.UUID, startingPrice uint64) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	if caller != e.owner {
		return 0, ErrUnauthorized
	}
	return e.createLocked(startingPrice)
}

// createLocked 為實際的建立邏輯，呼叫端必須持有臨界區。
func (e *Engine) createLocked(startingPrice uint64) (uint64, error) {
	if latest := e.periods[e.latestID]; latest != nil && !latest.Ended {
		return 0, ErrPreviousPeriodOpen
	}

	now := e.now()
	endTime := now.Add(e.params.Duration)
	itemID, err := e.gate.Issue(
		e.self, e.self, endTime, now,
		e.params.MintInterval, e.params.SpecialModulus, e.params.SpecialRecipients,
	)
	if err != nil {
		return 0, err
	}

	period := &Period{
		ID:            e.nextPeriodID,
		ItemID:        itemID,
		StartTime:     now,
		EndTime:       endTime,
		StartingPrice: startingPrice,
	}
	e.periods[period.ID] = period
	e.latestID = period.ID
	e.nextPeriodID++

	e.publish(Event{
		Type:          EventPeriodCreated,
		PeriodID:      period.ID,
		ItemID:        itemID,
		StartTime:     now,
		EndTime:       endTime,
		StartingPrice: startingPrice,
	})
	return period.ID, nil
}

// CreateNext 是供無人值守排程呼叫的入口：前一期已過截止時間但尚未
// 結標時會先自動結標，再建立新的一期。前一期仍開放中則失敗。
func (e *Engine) CreateNext(ctx context.Context, caller uuid.UUID, startingPrice uint64) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	if caller == uuid.Nil {
		return 0, ErrUnauthorized
	}
	if latest := e.periods[e.latestID]; latest != nil && !latest.Ended {
		if e.now().Before(latest.EndTime) {
			return 0, ErrPreviousPeriodOpen
		}
		// 過期未結標的一期在此懶惰結標，時間門檻已過，任何呼叫者都可觸發
		if err := e.closeLocked(ctx, caller, latest); err != nil {
			return 0, err
		}
	}
	return e.createLocked(startingPrice)
}

// PlaceBid 對指定的一期出價。金額必須同時滿足全域下限、起標價
// (首次出價)與最低加價幅度(已有出價時)。出價被接受時，前一位最高
// 出價者的款項轉入待退款餘額。
//
// 零值位址不是合法的出價身分：HighestBidder 以零值代表「尚無出價」，
// 放行零值呼叫者會讓下一筆出價誤入首次出價的分支。
func (e *Engine) PlaceBid(ctx context.Context, caller uuid.UUID, periodID uint64, amount uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if caller == uuid.Nil {
		return ErrUnauthorized
	}
	period, ok := e.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	if period.Ended {
		return ErrAlreadyClosed
	}
	if !e.now().Before(period.EndTime) {
		return ErrPeriodExpired
	}
	if amount < e.params.MinBidPrice {
		return ErrBelowFloor
	}
	if period.HighestBidder == uuid.Nil {
		if amount < period.StartingPrice {
			return ErrBelowStartingPrice
		}
	} else {
		inc, err := incrementOf(period.HighestBid, e.params.IncrementPercent)
		if err != nil {
			return err
		}
		floor, err := addChecked(period.HighestBid, inc)
		if err != nil {
			return err
		}
		if amount < floor {
			return ErrBelowMinIncrement
		}
		// 先確認退款累加不會溢位，收款後的步驟不允許失敗
		if _, err := addChecked(e.ledger.BalanceOf(period.HighestBidder), period.HighestBid); err != nil {
			return err
		}
	}

	// 把出價款項收進託管；失敗時狀態尚未改動，整筆出價直接駁回
	if err := e.call(func() error { return e.bank.Collect(ctx, caller, amount) }); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	prevBidder, prevBid := period.HighestBidder, period.HighestBid
	if prevBidder != uuid.Nil {
		// 溢位已在收款前檢查過
		_ = e.ledger.Credit(prevBidder, prevBid)
	}
	period.HighestBid = amount
	period.HighestBidder = caller

	e.publish(Event{
		Type:     EventBidPlaced,
		PeriodID: period.ID,
		ItemID:   period.ItemID,
		Address:  caller,
		Amount:   amount,
	})
	return nil
}

// Close 結束一期拍賣。截止時間已過時任何人都可以結標，截止前僅限
// owner。有得標者時，將結果註記到鑄造品並把得標款撥付給 treasury；
// 撥付失敗會回滾整個結標。無人出價時該期直接關閉，商品留在狀態機
// 自身名下(來源設計沒有重新上架的機制)。
func (e *Engine) Close(ctx context.Context, caller uuid.UUID, periodID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if caller == uuid.Nil {
		return ErrUnauthorized
	}
	period, ok := e.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	return e.closeLocked(ctx, caller, period)
}

func (e *Engine) closeLocked(ctx context.Context, caller uuid.UUID, period *Period) error {
	if period.Ended {
		return ErrAlreadyClosed
	}
	if e.now().Before(period.EndTime) && caller != e.owner {
		return ErrNotYetClosable
	}

	// 守門狀態先行寫入，撥付失敗時回滾
	period.Ended = true

	if period.HighestBidder != uuid.Nil {
		if err := e.gate.AnnotateResult(e.self, period.ItemID, period.HighestBid, period.HighestBidder); err != nil {
			period.Ended = false
			return err
		}
		payErr := e.call(func() error {
			return e.bank.Payout(ctx, e.params.Treasury, period.HighestBid)
		})
		if payErr != nil {
			e.gate.clearResult(period.ItemID)
			period.Ended = false
			return fmt.Errorf("%w: %w", ErrPayoutFailed, payErr)
		}
	}

	e.publish(Event{
		Type:     EventPeriodClosed,
		PeriodID: period.ID,
		ItemID:   period.ItemID,
		Address:  period.HighestBidder,
		Amount:   period.HighestBid,
	})
	return nil
}

// Claim 由得標者領取商品。僅在該期已結標、尚未領取且呼叫者即為
// 紀錄中的最高出價者時成功。無人出價的一期沒有任何呼叫者能通過
// 身分比對，商品經由此路徑永遠無法領取(來源設計保留的行為)。
func (e *Engine) Claim(caller uuid.UUID, periodID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if caller == uuid.Nil {
		return ErrUnauthorized
	}
	period, ok := e.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	if !period.Ended {
		return ErrNotYetClosable
	}
	if period.Claimed {
		return ErrAlreadyClaimed
	}
	if period.HighestBidder == uuid.Nil || caller != period.HighestBidder {
		return ErrNotWinner
	}

	period.Claimed = true
	if err := e.gate.TransferItem(e.self, period.ItemID, e.self, caller); err != nil {
		period.Claimed = false
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	e.publish(Event{
		Type:     EventItemClaimed,
		PeriodID: period.ID,
		ItemID:   period.ItemID,
		Address:  caller,
	})
	return nil
}

// Withdraw 領回呼叫者累積的待退款餘額。餘額在對外撥付之前先歸零，
// 撥付失敗時回復，杜絕重入式的重複提領。
func (e *Engine) Withdraw(ctx context.Context, caller uuid.UUID) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	if caller == uuid.Nil {
		return 0, ErrUnauthorized
	}
	amount := e.ledger.take(caller)
	if amount == 0 {
		return 0, ErrNothingToWithdraw
	}

	if err := e.call(func() error { return e.bank.Payout(ctx, caller, amount) }); err != nil {
		e.ledger.restore(caller, amount)
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	e.publish(Event{
		Type:    EventFundsWithdrawn,
		Address: caller,
		Amount:  amount,
	})
	return amount, nil
}
