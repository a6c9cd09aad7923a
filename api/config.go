package api

import (
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"
)

type ServerConfig struct {
	// ID 是節點的唯一識別，作為 consumer group 內的 consumer 名稱。
	ID string

	Auth    AuthConfig
	Auction AuctionConfig
	DB      DBConfig
	Redis   RedisConfig
}

type AuthConfig struct {
	// PrivateKey 用於驗證(與簽發)存取權杖。
	PrivateKey     ed25519.PrivateKey
	Issuer         string
	Audience       string
	ExpireDuration time.Duration
}

type AuctionConfig struct {
	// Owner 擁有參數調整與提前結標的權限，Treasury 接收拍賣收入。
	Owner    uuid.UUID
	Treasury uuid.UUID

	Duration         time.Duration
	MintInterval     time.Duration
	IncrementPercent uint64
	MinBidPrice      uint64
	SpecialModulus   uint64
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	ConsumerGroup string
	StreamKeys    RedisStreamKeys
}

type RedisStreamKeys struct {
	Events string
}
