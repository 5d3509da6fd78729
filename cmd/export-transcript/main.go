package main

import (
	"context"
	"flag"
	"os"

	"github.com/dvloznov/expense-agent/internal/config"
	"github.com/dvloznov/expense-agent/internal/logger"
	"github.com/dvloznov/expense-agent/internal/transcript"
)

// export-transcript uploads one thread's transcript to the configured
// GCS bucket for archival.
func main() {
	threadID := flag.String("thread", "", "thread ID whose transcript to upload")
	bucket := flag.String("bucket", "", "GCS bucket (defaults to GCS_BUCKET)")
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	if *threadID == "" {
		log.Error().Msg("-thread is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	if *bucket == "" {
		*bucket = cfg.GCSBucket
	}
	if *bucket == "" {
		log.Fatal().Msg("no bucket: pass -bucket or set GCS_BUCKET")
	}

	tlog, err := transcript.NewLog(cfg.TranscriptDir)
	if err != nil {
		log.Fatal().Err(err).Msg("opening transcript log")
	}

	uri, err := tlog.Archive(ctx, *bucket, *threadID)
	if err != nil {
		log.Fatal().Err(err).Str("thread_id", *threadID).Msg("uploading transcript")
	}
	log.Info().Str("uri", uri).Msg("transcript archived")
}
