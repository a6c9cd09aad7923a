package main

import (
	"fmt"
	"io"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"

	"hammer/models"
)

// atlas 的 external schema loader：將封存用的 gorm model 轉為
// PostgreSQL DDL 輸出到 stdout，供 atlas migrate diff 產生遷移檔。
func main() {
	stmts, err := gormschema.New("postgres").Load(
		&models.AuctionPeriod{},
		&models.Bid{},
		&models.MintedItem{},
		&models.PendingReturn{},
		&models.ParamChange{},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load gorm schema: %v\n", err)
		os.Exit(1)
	}
	io.WriteString(os.Stdout, stmts)
}
