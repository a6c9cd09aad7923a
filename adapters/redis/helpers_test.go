package redis

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"hammer/auction"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

func setupTest(t *testing.T) (*redis.Client, redismock.ClientMock, func()) {
	db, mock := redismock.NewClientMock()
	return db, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func testEvent(periodID uint64) auction.Event {
	return auction.Event{
		Type:     auction.EventBidPlaced,
		PeriodID: periodID,
		Address:  uuid.MustParse("f47ac10b-58cc-0372-8567-0e02b2c3d479"),
		Amount:   100,
		At:       time.Unix(1700000000, 0).UTC(),
	}
}
