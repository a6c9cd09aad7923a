package auction

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// MintedItem 是鑄造閘門發行的一件商品。
// Winner 與 WinningAmount 由生命週期在結標時恰好寫入一次。
type MintedItem struct {
	ID            uint64
	Owner         uuid.UUID
	MintedAt      time.Time
	Deadline      time.Time
	Winner        uuid.UUID
	WinningAmount uint64
}

// MintingGate 負責商品的鑄造：序號從 1 開始遞增、兩次鑄造之間必須
// 間隔至少一個完整的鑄造週期，且每當序號是 SpecialModulus 的整數倍
// 且特殊受贈者清單非空時，收件者改為從清單中隨機挑選。
//
// 隨機來源使用 crypto/rand。來源設計依賴鏈上資料作為偽隨機來源，
// 在共識環境之外必須換成呼叫者無法預測的來源，這裡以作業系統的
// CSPRNG 充當，測試可透過 pick 欄位注入固定的選擇函數。
//
// Issue 與 AnnotateResult 僅開放給註冊的呼叫者身分(生命週期的身分)。
// 與 EscrowLedger 相同，MintingGate 不做並行保護，依賴 Engine 的
// 單一寫入者臨界區。
type MintingGate struct {
	authorized uuid.UUID
	lastMintAt time.Time
	nextID     uint64
	items      map[uint64]*MintedItem
	pick       func(n int) int
}

// NewMintingGate 建立鑄造閘門，authorized 是唯一允許呼叫變更操作的身分。
func NewMintingGate(authorized uuid.UUID) *MintingGate {
	return &MintingGate{
		authorized: authorized,
		nextID:     1,
		items:      make(map[uint64]*MintedItem),
		pick:       securePick,
	}
}

// securePick 從 [0, n) 均勻挑選一個索引。
func securePick(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand 失效代表系統層級的問題，無法安全地繼續
		panic(fmt.Sprintf("auction: secure random source failed: %v", err))
	}
	return int(idx.Int64())
}

// Issue 鑄造一件新商品並回傳其序號。
// caller 必須是註冊的身分；距離上次成功鑄造必須經過至少 interval；
// 序號命中 modulus 的整數倍且 specials 非空時，收件者改為隨機挑選的
// 特殊受贈者。
func (g *MintingGate) Issue(caller, recipient uuid.UUID, deadline time.Time, now time.Time, interval time.Duration, modulus uint64, specials []uuid.UUID) (uint64, error) {
	if caller != g.authorized {
		return 0, ErrUnauthorized
	}
	if !g.lastMintAt.IsZero() && now.Sub(g.lastMintAt) < interval {
		return 0, ErrTooSoon
	}

	id := g.nextID
	owner := recipient
	if id%modulus == 0 && len(specials) > 0 {
		owner = specials[g.pick(len(specials))]
	}

	g.items[id] = &MintedItem{
		ID:       id,
		Owner:    owner,
		MintedAt: now,
		Deadline: deadline,
	}
	g.nextID = id + 1
	g.lastMintAt = now
	return id, nil
}

// AnnotateResult 在結標時寫入得標金額與得標者。
func (g *MintingGate) AnnotateResult(caller uuid.UUID, itemID uint64, amount uint64, winner uuid.UUID) error {
	if caller != g.authorized {
		return ErrUnauthorized
	}
	item, ok := g.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.WinningAmount = amount
	item.Winner = winner
	return nil
}

// clearResult 撤銷一次結標註記，僅供生命週期在收益撥付失敗時回滾使用。
func (g *MintingGate) clearResult(itemID uint64) {
	if item, ok := g.items[itemID]; ok {
		item.WinningAmount = 0
		item.Winner = uuid.Nil
	}
}

// TransferItem 轉移商品所有權(單一持有者的所有權轉移能力)。
// from 必須是目前的持有者。
func (g *MintingGate) TransferItem(caller uuid.UUID, itemID uint64, from, to uuid.UUID) error {
	if caller != g.authorized {
		return ErrUnauthorized
	}
	item, ok := g.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if item.Owner != from {
		return ErrUnauthorized
	}
	item.Owner = to
	return nil
}

// Item 回傳一件商品的目前狀態副本。
func (g *MintingGate) Item(itemID uint64) (MintedItem, bool) {
	item, ok := g.items[itemID]
	if !ok {
		return MintedItem{}, false
	}
	return *item, true
}

// MintedCount 回傳已鑄造的商品數量。
func (g *MintingGate) MintedCount() uint64 {
	return g.nextID - 1
}
