package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hammer/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.String("node-id", "hammer-0", "")

	// auth config
	pflag.String("auth-private-key", "", "base64 encoded ed25519 private key")
	pflag.String("auth-issuer", "hammer", "")
	pflag.String("auth-audience", "hammer", "")
	pflag.Duration("auth-expire-duration", 3*time.Hour, "")

	// auction config
	pflag.String("auction-owner", "", "")
	pflag.String("auction-treasury", "", "")
	pflag.Duration("auction-duration", 0, "")
	pflag.Duration("auction-mint-interval", 0, "")
	pflag.Uint64("auction-increment-percent", 0, "")
	pflag.Uint64("auction-min-bid-price", 0, "")
	pflag.Uint64("auction-special-modulus", 0, "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")
	pflag.String("redis-key-prefix", "hammer:", "")
	pflag.String("redis-consumer-group", "hammer-archive", "")

	// redis stream keys
	pflag.String("redis-stream-key-for-events", "hammer-shared-event-stream", "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("HAMMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	var privateKey ed25519.PrivateKey
	if raw, err := base64.StdEncoding.DecodeString(viper.GetString("auth-private-key")); err == nil && len(raw) == ed25519.PrivateKeySize {
		privateKey = ed25519.PrivateKey(raw)
	}
	owner, _ := uuid.Parse(viper.GetString("auction-owner"))
	treasury, _ := uuid.Parse(viper.GetString("auction-treasury"))

	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			ID: viper.GetString("node-id"),
			Auth: api.AuthConfig{
				PrivateKey:     privateKey,
				Issuer:         viper.GetString("auth-issuer"),
				Audience:       viper.GetString("auth-audience"),
				ExpireDuration: viper.GetDuration("auth-expire-duration"),
			},
			Auction: api.AuctionConfig{
				Owner:            owner,
				Treasury:         treasury,
				Duration:         viper.GetDuration("auction-duration"),
				MintInterval:     viper.GetDuration("auction-mint-interval"),
				IncrementPercent: viper.GetUint64("auction-increment-percent"),
				MinBidPrice:      viper.GetUint64("auction-min-bid-price"),
				SpecialModulus:   viper.GetUint64("auction-special-modulus"),
			},
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:          viper.GetString("redis-addr"),
				Password:      viper.GetString("redis-password"),
				DB:            viper.GetInt("redis-db"),
				KeyPrefix:     viper.GetString("redis-key-prefix"),
				ConsumerGroup: viper.GetString("redis-consumer-group"),
				StreamKeys: api.RedisStreamKeys{
					Events: viper.GetString("redis-stream-key-for-events"),
				},
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" &&
		args.ServerConfig.Auth.PrivateKey != nil &&
		args.ServerConfig.Auction.Owner != uuid.Nil &&
		args.ServerConfig.Auction.Treasury != uuid.Nil
}
