package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-agent/internal/agent"
	"github.com/dvloznov/expense-agent/internal/checkpoint"
	"github.com/dvloznov/expense-agent/internal/config"
	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/ledger"
	ledgerbq "github.com/dvloznov/expense-agent/internal/ledger/bigquery"
	ledgersqlite "github.com/dvloznov/expense-agent/internal/ledger/sqlite"
	"github.com/dvloznov/expense-agent/internal/llm"
	"github.com/dvloznov/expense-agent/internal/logger"
	"github.com/dvloznov/expense-agent/internal/memory"
	"github.com/dvloznov/expense-agent/internal/transcript"
)

func main() {
	indexPast := flag.Bool("index", false, "index existing transcripts into long-term memory before starting")
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	ag, mem, tlog, err := buildAgent(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring agent")
	}

	if *indexPast {
		if err := indexTranscripts(ctx, cfg, mem, tlog, log); err != nil {
			log.Warn().Err(err).Msg("indexing transcripts")
		}
	}

	threadID := uuid.New().String()
	fmt.Printf("Thread %s. Type a message, /new for a fresh thread, exit to quit.\n", threadID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		switch {
		case text == "":
			continue
		case text == "exit" || text == "quit":
			return
		case text == "/new":
			threadID = uuid.New().String()
			fmt.Printf("Thread %s.\n", threadID)
			continue
		}

		reply, err := ag.HandleTurn(ctx, threadID, cfg.UserID, text)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Println(reply)
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("reading input")
	}
}

// indexTranscripts chunks every past transcript into the user's memory
// namespace so earlier conversations are searchable.
func indexTranscripts(ctx context.Context, cfg *config.Config, mem memory.Store, tlog *transcript.Log, log zerolog.Logger) error {
	files, err := filepath.Glob(filepath.Join(cfg.TranscriptDir, "*.jsonl"))
	if err != nil {
		return fmt.Errorf("indexTranscripts: glob: %w", err)
	}
	namespace := memory.UserNamespace(cfg.UserID)
	for _, file := range files {
		threadID := strings.TrimSuffix(filepath.Base(file), ".jsonl")
		lines, err := tlog.ReadLines(threadID)
		if err != nil {
			return fmt.Errorf("indexTranscripts: %w", err)
		}
		n, err := memory.IndexLines(ctx, mem, namespace, lines)
		if err != nil {
			return fmt.Errorf("indexTranscripts: %w", err)
		}
		log.Info().Str("thread_id", threadID).Int("chunks", n).Msg("transcript indexed")
	}
	return nil
}

func buildAgent(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*agent.Agent, memory.Store, *transcript.Log, error) {
	gen, err := llm.NewGemini(ctx, cfg.GenModel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
	}

	embedder, err := memory.NewGeminiEmbedder(ctx, cfg.EmbedModel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
	}

	var mem memory.Store
	switch cfg.MemoryDialect {
	case "sqlite":
		store, err := memory.NewSQLiteStore(cfg.MemoryPath, embedder)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
		}
		mem = store
	default:
		mem = memory.NewInMemStore(embedder)
	}

	var led ledger.Store
	switch cfg.LedgerDialect {
	case "bigquery":
		store, err := ledgerbq.New(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.BigQueryTable)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
		}
		led = store
	default:
		store, err := ledgersqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
		}
		led = store
	}

	checkpoints, err := checkpoint.NewSQLiteStore(cfg.CheckpointPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
	}

	tlog, err := transcript.NewLog(cfg.TranscriptDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
	}

	ag, err := agent.New(agent.Options{
		Generator:   gen,
		Ledger:      led,
		Memory:      mem,
		Checkpoints: checkpoints,
		Transcript:  tlog,
		Assemble: conversation.AssembleOptions{
			Budget:      cfg.ContextBudget,
			WindowTurns: cfg.WindowTurns,
			RetrieveK:   cfg.RetrieveK,
			Retriever: func(query string, k int) []string {
				snippets, err := mem.Search(ctx, memory.UserNamespace(cfg.UserID), query, k)
				if err != nil {
					log.Warn().Err(err).Msg("memory retrieval failed")
					return nil
				}
				out := make([]string, 0, len(snippets))
				for _, s := range snippets {
					out = append(out, s.Content)
				}
				return out
			},
		},
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("buildAgent: %w", err)
	}
	log.Info().
		Str("ledger", cfg.LedgerDialect).
		Str("memory", cfg.MemoryDialect).
		Str("model", cfg.GenModel).
		Msg("agent ready")
	return ag, mem, tlog, nil
}
