package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	redisAdapter "hammer/adapters/redis"
	"hammer/adapters/sse"
	"hammer/auction"
	"hammer/models"
)

type ServerImpl struct {
	engine        *auction.Engine
	bank          *auction.MemoryBank
	sseManager    sse.IConnectionManager
	redisClient   *redis.Client
	producer      redisAdapter.IEventProducer
	consumer      redisAdapter.IEventConsumer
	groupConsumer redisAdapter.IEventGroupConsumer
	wg            sync.WaitGroup
	cancelFunc    context.CancelFunc
	db            *gorm.DB

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	if config.Auction.Owner == uuid.Nil {
		return nil, fmt.Errorf("[%s] Auction owner is required", op)
	}
	if config.Auction.Treasury == uuid.Nil {
		return nil, fmt.Errorf("[%s] Auction treasury is required", op)
	}
	if len(config.Auth.PrivateKey) == 0 {
		return nil, fmt.Errorf("[%s] Auth private key is required", op)
	}

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	if err := db.AutoMigrate(
		&models.AuctionPeriod{},
		&models.Bid{},
		&models.MintedItem{},
		&models.PendingReturn{},
		&models.ParamChange{},
	); err != nil {
		return nil, fmt.Errorf("[%s] Fail to migrate database, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化事件發布者，狀態機每完成一次狀態轉移就發佈一個事件
	producer, err := redisAdapter.NewEventProducer(redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event producer, err=%w", op, err)
	}

	// 初始化SSE管理器，以尾隨消費者接收所有節點發布的事件
	consumer, err := redisAdapter.NewEventConsumer(redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event consumer, err=%w", op, err)
	}
	sseManager := sse.NewConnectionManager(
		sse.WithLogger(slog.Default()),
		sse.WithSubscriber(consumer),
	)

	// 初始化group consumer，用於將事件封存回資料庫
	groupConsumer, err := redisAdapter.NewEventGroupConsumer(
		redisClient,
		config.Redis.StreamKeys.Events,
		config.Redis.ConsumerGroup,
		config.ID,
		redisAdapter.WithGroupConsumerLogger(slog.Default()),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create group consumer, err=%w", op, err)
	}

	// 初始化拍賣狀態機
	params := auction.DefaultParams(config.Auction.Treasury)
	if config.Auction.Duration > 0 {
		params.Duration = config.Auction.Duration
	}
	if config.Auction.MintInterval > 0 {
		params.MintInterval = config.Auction.MintInterval
	}
	if config.Auction.IncrementPercent > 0 {
		params.IncrementPercent = config.Auction.IncrementPercent
	}
	if config.Auction.MinBidPrice > 0 {
		params.MinBidPrice = config.Auction.MinBidPrice
	}
	if config.Auction.SpecialModulus > 0 {
		params.SpecialModulus = config.Auction.SpecialModulus
	}
	bank := auction.NewMemoryBank()
	engine, err := auction.NewEngine(
		config.Auction.Owner,
		params,
		bank,
		auction.WithEmitFunc(func(ev auction.Event) {
			if err := producer.Publish(ev); err != nil {
				slog.Error("Fail to publish event", slog.String("type", string(ev.Type)), slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create auction engine, err=%w", op, err)
	}

	return &ServerImpl{
		engine:        engine,
		bank:          bank,
		sseManager:    sseManager,
		redisClient:   redisClient,
		producer:      producer,
		consumer:      consumer,
		groupConsumer: groupConsumer,
		db:            db,
		config:        config,
	}, nil
}

func (impl *ServerImpl) Start() error {
	const op = "Start"
	// 確保consumer group存在
	if err := impl.redisClient.XGroupCreateMkStream(
		context.Background(),
		impl.config.Redis.StreamKeys.Events,
		impl.config.Redis.ConsumerGroup,
		"$",
	).Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("[%s] Fail to create consumer group, err=%w", op, err)
	}

	// 啟動producer
	impl.producer.Start()
	// 啟動consumer
	impl.consumer.Start()
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動group consumer
	if err := impl.groupConsumer.Start(); err != nil {
		return fmt.Errorf("[%s] Fail to start group consumer, err=%w", op, err)
	}

	// 啟動一個worker用於將事件串流封存回資料庫
	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel
	slog.Info("Start event archive worker")
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "EventArchive"))
		defer impl.wg.Done()
		defer slog.Info("Event archive worker stopped")
		ch := impl.groupConsumer.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				logger.Debug("Receive event", slog.String("type", string(msg.Event.Type)))
				handleErr := impl.archiveEvent(msg.Event)
				if handleErr != nil {
					logger.Error("Fail to archive event", slog.Any("error", handleErr))
					if err := msg.Fail(ctx, handleErr); err != nil {
						logger.Error("Fail to fail message", slog.Any("error", err))
					}
					continue
				}
				if err := msg.Done(ctx); err != nil {
					logger.Error("Archive success but fail to done message", slog.Any("error", err))
					if err := msg.Fail(ctx, err); err != nil {
						logger.Error("Archive success but fail to fail message", slog.Any("error", err))
					}
					continue
				}
				logger.Debug("Archive success")
			}
		}
	}()
	return nil
}

func (impl *ServerImpl) Close() {
	// 關閉group consumer
	impl.groupConsumer.Close()
	// 關閉worker
	impl.cancelFunc()
	impl.wg.Wait()
	// 關閉consumer
	impl.consumer.Close()
	// 關閉producer
	impl.producer.Close()
	// 關閉sse connection manager
	impl.sseManager.Done()
}

// archiveEvent 將單一事件寫入資料庫。事件可能因為重新投遞而重複，
// 所有寫入都必須是冪等的。
func (impl *ServerImpl) archiveEvent(ev auction.Event) error {
	switch ev.Type {
	case auction.EventPeriodCreated:
		period := models.AuctionPeriod{
			PeriodID:      ev.PeriodID,
			ItemID:        ev.ItemID,
			StartTime:     ev.StartTime,
			EndTime:       ev.EndTime,
			StartingPrice: ev.StartingPrice,
		}
		if result := impl.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&period); result.Error != nil {
			return fmt.Errorf("fail to create auction period, err=%w", result.Error)
		}
		// 商品在結標前由狀態機保管，Owner 維持零值
		item := models.MintedItem{
			ItemID:   ev.ItemID,
			MintedAt: ev.At,
			Deadline: ev.EndTime,
		}
		if result := impl.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item); result.Error != nil {
			return fmt.Errorf("fail to create minted item, err=%w", result.Error)
		}
	case auction.EventBidPlaced:
		var period models.AuctionPeriod
		if result := impl.db.Where("period_id = ?", ev.PeriodID).First(&period); result.Error != nil {
			return fmt.Errorf("fail to find auction period, err=%w", result.Error)
		}
		if period.HighestBid >= ev.Amount {
			// 重新投遞的舊事件，直接忽略
			return nil
		}
		// 被超越的前一位出價者款項轉入待退款餘額
		if period.HighestBidder != nil {
			refund := models.PendingReturn{Address: *period.HighestBidder, Balance: period.HighestBid}
			if result := impl.db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "address"}},
				DoUpdates: clause.Assignments(map[string]any{"balance": gorm.Expr("pending_returns.balance + ?", period.HighestBid)}),
			}).Create(&refund); result.Error != nil {
				return fmt.Errorf("fail to upsert pending return, err=%w", result.Error)
			}
		}
		bid := models.Bid{
			PeriodID: ev.PeriodID,
			ItemID:   period.ItemID,
			Bidder:   ev.Address,
			Amount:   ev.Amount,
			PlacedAt: ev.At,
		}
		if result := impl.db.Create(&bid); result.Error != nil {
			return fmt.Errorf("fail to create bid, err=%w", result.Error)
		}
		period.HighestBid = ev.Amount
		period.HighestBidder = lo.ToPtr(ev.Address)
		if result := impl.db.Save(&period); result.Error != nil {
			return fmt.Errorf("fail to update auction period, err=%w", result.Error)
		}
	case auction.EventPeriodClosed:
		if result := impl.db.Model(&models.AuctionPeriod{}).Where("period_id = ?", ev.PeriodID).Update("ended", true); result.Error != nil {
			return fmt.Errorf("fail to close auction period, err=%w", result.Error)
		}
		// 結標結果在此註記到鑄造品上，得標者領取與否不影響結果欄位
		if ev.Address != uuid.Nil {
			if result := impl.db.Model(&models.MintedItem{}).Where("item_id = ?", ev.ItemID).Updates(map[string]any{
				"winner":         ev.Address,
				"winning_amount": ev.Amount,
			}); result.Error != nil {
				return fmt.Errorf("fail to annotate minted item, err=%w", result.Error)
			}
		}
	case auction.EventItemClaimed:
		if result := impl.db.Model(&models.AuctionPeriod{}).Where("period_id = ?", ev.PeriodID).Update("claimed", true); result.Error != nil {
			return fmt.Errorf("fail to mark period claimed, err=%w", result.Error)
		}
		if result := impl.db.Model(&models.MintedItem{}).Where("item_id = ?", ev.ItemID).Updates(map[string]any{
			"owner":          ev.Address,
			"winner":         ev.Address,
			"winning_amount": ev.Amount,
		}); result.Error != nil {
			return fmt.Errorf("fail to update minted item, err=%w", result.Error)
		}
	case auction.EventFundsWithdrawn:
		if result := impl.db.Model(&models.PendingReturn{}).Where("address = ?", ev.Address).Update("balance", 0); result.Error != nil {
			return fmt.Errorf("fail to clear pending return, err=%w", result.Error)
		}
	case auction.EventParamUpdated:
		change := models.ParamChange{
			Param:     ev.Param,
			Value:     ev.Value,
			ChangedAt: ev.At,
		}
		if result := impl.db.Create(&change); result.Error != nil {
			return fmt.Errorf("fail to create param change, err=%w", result.Error)
		}
	default:
		slog.Warn("Unknown event type", slog.String("type", string(ev.Type)))
	}
	return nil
}

// RegisterRoutes 將所有HTTP端點掛載到router上。
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.POST("/auth/tokens", impl.PostAuthTokens)

	router.POST("/periods", impl.PostPeriods)
	router.GET("/periods/current", impl.GetCurrentPeriod)
	router.GET("/periods/:periodID", impl.GetPeriod)
	router.POST("/periods/:periodID/bids", impl.PostPeriodBids)
	router.POST("/periods/:periodID/close", impl.PostPeriodClose)
	router.POST("/periods/:periodID/claim", impl.PostPeriodClaim)
	router.GET("/periods/:periodID/events", impl.GetPeriodEvents)
	router.GET("/events", impl.GetAllEvents)

	router.GET("/items/:itemID", impl.GetItem)

	router.POST("/withdrawals", impl.PostWithdrawals)
	router.GET("/bank/balance", impl.GetBankBalance)
	router.POST("/bank/deposits", impl.PostBankDeposits)

	router.GET("/params", impl.GetParams)
	router.PATCH("/params", impl.PatchParams)
}

// statuses 將狀態機的錯誤代碼映射到HTTP狀態碼。
var statuses = map[string]int{
	"Unauthorized":       http.StatusForbidden,
	"PreviousPeriodOpen": http.StatusConflict,
	"AlreadyClosed":      http.StatusGone,
	"NotYetClosable":     http.StatusConflict,
	"AlreadyClaimed":     http.StatusConflict,
	"TooSoon":            http.StatusConflict,
	"ReentrantCall":      http.StatusConflict,
	"BelowFloor":         http.StatusBadRequest,
	"BelowStartingPrice": http.StatusBadRequest,
	"BelowMinIncrement":  http.StatusBadRequest,
	"PeriodExpired":      http.StatusGone,
	"NotWinner":          http.StatusForbidden,
	"InvalidParam":       http.StatusBadRequest,
	"AmountOverflow":     http.StatusBadRequest,
	"NotFound":           http.StatusNotFound,
	"NothingToWithdraw":  http.StatusBadRequest,
	"TransferFailed":     http.StatusBadGateway,
	"PayoutFailed":       http.StatusBadGateway,
}

// abortWithError 將狀態機錯誤轉換為統一的錯誤回應。
func abortWithError(c *gin.Context, err error) {
	// 餘額不足是客戶端可預期的失敗，不走轉帳錯誤的通道
	if errors.Is(err, auction.ErrInsufficientFunds) {
		c.JSON(http.StatusBadRequest, gin.H{"code": "InsufficientFunds", "message": err.Error()})
		return
	}
	code := auction.Code(err)
	status, ok := statuses[code]
	if !ok {
		slog.Error("Unhandled error", slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"code": code, "message": err.Error()})
}

func parsePeriodID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("periodID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid period id"})
		return 0, false
	}
	return id, true
}

// Issue an access token
// (POST /auth/tokens)
func (impl *ServerImpl) PostAuthTokens(c *gin.Context) {
	var body struct {
		Subject  uuid.UUID `json:"subject" binding:"required"`
		Username string    `json:"username"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	token, err := issueToken(impl.config.Auth, body.Subject, body.Username)
	if err != nil {
		slog.Error("Fail to issue token", slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accessToken": token})
}

// Settle the expired period (if any) and create the next one
// (POST /periods)
func (impl *ServerImpl) PostPeriods(c *gin.Context) {
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var body struct {
		StartingPrice uint64 `json:"startingPrice"`
	}
	// 空body視為預設起標價
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}
	periodID, err := impl.engine.CreateNext(c.Request.Context(), caller, body.StartingPrice)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Location", fmt.Sprintf("/periods/%d", periodID))
	c.JSON(http.StatusCreated, gin.H{"periodId": periodID})
}

type periodView struct {
	PeriodID      uint64     `json:"periodId"`
	ItemID        uint64     `json:"itemId"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	StartingPrice uint64     `json:"startingPrice"`
	HighestBid    uint64     `json:"highestBid"`
	HighestBidder *uuid.UUID `json:"highestBidder,omitempty"`
	Ended         bool       `json:"ended"`
	Claimed       bool       `json:"claimed"`
	RemainingSec  int64      `json:"remainingSeconds"`
	NextMinimum   uint64     `json:"nextMinimumBid,omitempty"`
}

func (impl *ServerImpl) periodView(period auction.Period) periodView {
	view := periodView{
		PeriodID:      period.ID,
		ItemID:        period.ItemID,
		StartTime:     period.StartTime,
		EndTime:       period.EndTime,
		StartingPrice: period.StartingPrice,
		HighestBid:    period.HighestBid,
		Ended:         period.Ended,
		Claimed:       period.Claimed,
	}
	if period.HighestBidder != uuid.Nil {
		view.HighestBidder = lo.ToPtr(period.HighestBidder)
	}
	if remaining, err := impl.engine.RemainingTime(period.ID); err == nil {
		view.RemainingSec = int64(remaining.Seconds())
	}
	if next, err := impl.engine.NextMinimumBid(period.ID); err == nil {
		view.NextMinimum = next
	}
	return view
}

// Get the currently open period
// (GET /periods/current)
func (impl *ServerImpl) GetCurrentPeriod(c *gin.Context) {
	period, ok := impl.engine.ActivePeriod()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, impl.periodView(period))
}

// Get period details with its archived bid history
// (GET /periods/{periodID})
func (impl *ServerImpl) GetPeriod(c *gin.Context) {
	const op = "GetPeriod"
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	period, ok := impl.engine.Period(periodID)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	// 出價歷史來自封存資料庫，依時間新到舊排序
	var bids []models.Bid
	if result := impl.db.
		Where("period_id = ?", periodID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "placed_at"}, Desc: true}).
		Find(&bids); result.Error != nil {
		slog.Error("Fail to load bid history", slog.String("op", op), slog.Any("error", result.Error))
		c.Status(http.StatusInternalServerError)
		return
	}
	history := make([]gin.H, len(bids))
	for i, bid := range bids {
		history[i] = gin.H{
			"bidder":   bid.Bidder,
			"amount":   bid.Amount,
			"placedAt": bid.PlacedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"period": impl.periodView(period),
		"bids":   history,
	})
}

// Place a bid on a period
// (POST /periods/{periodID}/bids)
func (impl *ServerImpl) PostPeriodBids(c *gin.Context) {
	const op = "PostPeriodBids"
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var body struct {
		Amount uint64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// 取得Redis上該期的出價鎖，跨節點序列化出價提交
	lockKey := fmt.Sprintf("%speriods:%d:lock", impl.config.Redis.KeyPrefix, periodID)
	dMutex := redisAdapter.NewAutoRenewMutex(impl.redisClient, lockKey)
	lockCtx, err := dMutex.Lock(c.Request.Context())
	if err != nil {
		slog.Error("Fail to acquire bid lock", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer func() {
		if _, err := dMutex.Unlock(); err != nil {
			slog.Warn("Fail to release bid lock", slog.String("op", op), slog.Any("error", err))
		}
	}()

	if err := impl.engine.PlaceBid(lockCtx, caller, periodID, body.Amount); err != nil {
		abortWithError(c, err)
		return
	}
	slog.Info("Higher bid occurs", slog.String("user", caller.String()), slog.Uint64("bid", body.Amount), slog.Uint64("periodID", periodID))
	c.Status(http.StatusOK)
}

// Close a period
// (POST /periods/{periodID}/close)
func (impl *ServerImpl) PostPeriodClose(c *gin.Context) {
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	if err := impl.engine.Close(c.Request.Context(), caller, periodID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Claim the won item
// (POST /periods/{periodID}/claim)
func (impl *ServerImpl) PostPeriodClaim(c *gin.Context) {
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	if err := impl.engine.Claim(caller, periodID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Track events of a single period
// (GET /periods/{periodID}/events)
func (impl *ServerImpl) GetPeriodEvents(c *gin.Context) {
	periodID, ok := parsePeriodID(c)
	if !ok {
		return
	}
	period, ok := impl.engine.Period(periodID)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	if period.Ended {
		c.JSON(http.StatusGone, gin.H{"message": "Period has ended"})
		return
	}
	impl.streamEvents(c, sse.TopicForPeriod(periodID))
}

// Track all auction events
// (GET /events)
func (impl *ServerImpl) GetAllEvents(c *gin.Context) {
	impl.streamEvents(c, sse.TopicAll)
}

// streamEvents 將指定頻道的事件以SSE推送給客戶端。
func (impl *ServerImpl) streamEvents(c *gin.Context, topic string) {
	const op = "streamEvents"
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	ch, err := impl.sseManager.Subscribe(topic)
	if err != nil {
		slog.Error("Fail to subscribe to events", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	for {
		select {
		case <-w.CloseNotify():
			impl.sseManager.Unsubscribe(topic, ch)
			return
		case event := <-ch:
			c.SSEvent(string(event.Type), event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Proxy不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

// Get minted item details
// (GET /items/{itemID})
func (impl *ServerImpl) GetItem(c *gin.Context) {
	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid item id"})
		return
	}
	item, ok := impl.engine.Item(itemID)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	view := gin.H{
		"itemId":   item.ID,
		"owner":    item.Owner,
		"mintedAt": item.MintedAt,
		"deadline": item.Deadline,
	}
	if item.Winner != uuid.Nil {
		view["winner"] = item.Winner
		view["winningAmount"] = item.WinningAmount
	}
	c.JSON(http.StatusOK, view)
}

// Withdraw the accumulated refund balance
// (POST /withdrawals)
func (impl *ServerImpl) PostWithdrawals(c *gin.Context) {
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	amount, err := impl.engine.Withdraw(c.Request.Context(), caller)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount})
}

// Get bank and refund balances of the caller
// (GET /bank/balance)
func (impl *ServerImpl) GetBankBalance(c *gin.Context) {
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":       impl.bank.BalanceOf(caller),
		"pendingReturn": impl.engine.PendingReturn(caller),
	})
}

// Deposit funds into an account
// (POST /bank/deposits)
func (impl *ServerImpl) PostBankDeposits(c *gin.Context) {
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	// 入金是營運操作，僅限owner
	if caller != impl.engine.Owner() {
		c.Status(http.StatusForbidden)
		return
	}
	var body struct {
		Address uuid.UUID `json:"address" binding:"required"`
		Amount  uint64    `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := impl.bank.Deposit(body.Address, body.Amount); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// Get current auction parameters
// (GET /params)
func (impl *ServerImpl) GetParams(c *gin.Context) {
	params := impl.engine.Params()
	c.JSON(http.StatusOK, gin.H{
		"durationSeconds":     int64(params.Duration.Seconds()),
		"mintIntervalSeconds": int64(params.MintInterval.Seconds()),
		"incrementPercent":    params.IncrementPercent,
		"minBidPrice":         params.MinBidPrice,
		"treasury":            params.Treasury,
		"specialModulus":      params.SpecialModulus,
		"specialRecipients":   params.SpecialRecipients,
	})
}

// Update auction parameters
// (PATCH /params)
func (impl *ServerImpl) PatchParams(c *gin.Context) {
	caller, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var body struct {
		DurationSeconds     *int64       `json:"durationSeconds"`
		MintIntervalSeconds *int64       `json:"mintIntervalSeconds"`
		IncrementPercent    *uint64      `json:"incrementPercent"`
		MinBidPrice         *uint64      `json:"minBidPrice"`
		Treasury            *uuid.UUID   `json:"treasury"`
		SpecialRecipients   *[]uuid.UUID `json:"specialRecipients"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// 逐項套用，遇到第一個錯誤就停止
	apply := func() error {
		if body.DurationSeconds != nil {
			if err := impl.engine.SetDuration(caller, time.Duration(*body.DurationSeconds)*time.Second); err != nil {
				return err
			}
		}
		if body.MintIntervalSeconds != nil {
			if err := impl.engine.SetMintInterval(caller, time.Duration(*body.MintIntervalSeconds)*time.Second); err != nil {
				return err
			}
		}
		if body.IncrementPercent != nil {
			if err := impl.engine.SetIncrementPercent(caller, *body.IncrementPercent); err != nil {
				return err
			}
		}
		if body.MinBidPrice != nil {
			if err := impl.engine.SetMinBidPrice(caller, *body.MinBidPrice); err != nil {
				return err
			}
		}
		if body.Treasury != nil {
			if err := impl.engine.SetTreasury(caller, *body.Treasury); err != nil {
				return err
			}
		}
		if body.SpecialRecipients != nil {
			if err := impl.engine.SetSpecialRecipients(caller, *body.SpecialRecipients); err != nil {
				return err
			}
		}
		return nil
	}
	if err := apply(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
