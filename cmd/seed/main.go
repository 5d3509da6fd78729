package main

import (
	"context"
	"flag"
	"time"

	"github.com/dvloznov/expense-agent/internal/config"
	"github.com/dvloznov/expense-agent/internal/domain"
	"github.com/dvloznov/expense-agent/internal/ledger"
	ledgerbq "github.com/dvloznov/expense-agent/internal/ledger/bigquery"
	ledgersqlite "github.com/dvloznov/expense-agent/internal/ledger/sqlite"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// seed inserts a handful of sample transactions so queries have
// something to answer against during development.
func main() {
	days := flag.Int("days", 7, "spread the sample records over this many past days")
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	var store ledger.Store
	switch cfg.LedgerDialect {
	case "bigquery":
		s, err := ledgerbq.New(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
		if err != nil {
			log.Fatal().Err(err).Msg("opening bigquery ledger")
		}
		defer s.Close()
		store = s
	default:
		s, err := ledgersqlite.New(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("opening sqlite ledger")
		}
		defer s.Close()
		store = s
	}

	now := time.Now().Truncate(time.Minute)
	samples := []domain.TransactionRecord{
		{Type: domain.TypeExpense, Item: "coffee", AmountMinor: 2800, Currency: "CNY", Category: "food", Merchant: "Luckin"},
		{Type: domain.TypeExpense, Item: "lunch", AmountMinor: 4500, Currency: "CNY", Category: "food"},
		{Type: domain.TypeExpense, Item: "metro", AmountMinor: 600, Currency: "CNY", Category: "transport"},
		{Type: domain.TypeExpense, Item: "groceries", AmountMinor: 15800, Currency: "CNY", Category: "food", Merchant: "Hema"},
		{Type: domain.TypeExpense, Item: "movie ticket", AmountMinor: 5200, Currency: "CNY", Category: "entertainment"},
		{Type: domain.TypeIncome, Item: "salary", AmountMinor: 1500000, Currency: "CNY", Category: "income"},
	}

	step := time.Duration(*days) * 24 * time.Hour / time.Duration(len(samples))
	for i := range samples {
		samples[i].OccurredAt = now.Add(-time.Duration(len(samples)-i) * step)
		samples[i].SourceMessage = "seed"
		id, err := store.Insert(ctx, cfg.UserID, &samples[i])
		if err != nil {
			log.Fatal().Err(err).Str("item", samples[i].Item).Msg("inserting sample")
		}
		log.Info().Str("id", id).Str("item", samples[i].Item).Int64("amount_minor", samples[i].AmountMinor).Msg("inserted")
	}
}
