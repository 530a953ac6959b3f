package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
	cfgPkg "github.com/AhmedEldessouki1982/cdns/pkg/config"
	"github.com/AhmedEldessouki1982/cdns/pkg/extract"
	"github.com/AhmedEldessouki1982/cdns/pkg/llm"
	"github.com/AhmedEldessouki1982/cdns/pkg/rag"
	"github.com/AhmedEldessouki1982/cdns/pkg/records"
	"github.com/AhmedEldessouki1982/cdns/pkg/store"
	"github.com/AhmedEldessouki1982/cdns/server"
)

type cliFlags struct {
	configPath string
	serve      bool
	backfill   bool
	ingestDoc  string

	addr      string
	engine    string
	dbURL     string
	vectorDim int
	topK      int
	maxChars  int
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := run(parseFlags(), logger); err != nil {
		logger.Fatal().Err(err).Msg("exiting")
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", "", "Path to config file")
	flag.BoolVar(&flags.serve, "serve", false, "Run the HTTP server")
	flag.BoolVar(&flags.backfill, "backfill", false, "Backfill the vector index from the records database")
	flag.StringVar(&flags.ingestDoc, "ingest-doc", "", "Ingest a PDF document and exit")
	flag.StringVar(&flags.addr, "addr", "", "HTTP listen address")
	flag.StringVar(&flags.engine, "engine", "", "Vector index engine (pgvector or memory)")
	flag.StringVar(&flags.dbURL, "db-url", "", "PostgreSQL connection string for the vector index")
	flag.IntVar(&flags.vectorDim, "vector-dim", 0, "Vector dimension")
	flag.IntVar(&flags.topK, "top-k", 0, "Number of chunks retrieved per question")
	flag.IntVar(&flags.maxChars, "max-chars", 0, "Chunk size budget in characters")
	flag.Parse()
	return flags
}

func loadConfig(flags cliFlags) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	// Command line flags override the file
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.engine != "" {
		cfg.Index.Engine = flags.engine
	}
	if flags.dbURL != "" {
		cfg.Index.URL = flags.dbURL
	}
	if flags.vectorDim != 0 {
		cfg.Index.VectorDim = flags.vectorDim
	}
	if flags.topK != 0 {
		cfg.Retrieval.TopK = flags.topK
	}
	if flags.maxChars != 0 {
		cfg.Ingest.MaxChars = flags.maxChars
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}
	return cfg, nil
}

func newIndex(ctx context.Context, cfg *cfgPkg.Config, logger zerolog.Logger) (types.Index, error) {
	switch cfg.Index.Engine {
	case "memory":
		idx, err := store.NewMemory(cfg.Index.VectorDim)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		idx, err := store.NewPgVector(ctx, store.PgVectorConfig{
			ConnString:  cfg.Index.URL,
			TableName:   cfg.Index.TableName,
			VectorDim:   cfg.Index.VectorDim,
			SearchLimit: cfg.Retrieval.TopK,
		}, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
}

func run(flags cliFlags, logger zerolog.Logger) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx := context.Background()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.EmbeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.ChatModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	index, err := newIndex(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %v", err)
	}
	defer index.Close()

	pipeline := rag.NewPipeline(embedder, chatEngine, index, rag.Config{
		MaxChars:    cfg.Ingest.MaxChars,
		TopK:        cfg.Retrieval.TopK,
		Concurrency: cfg.Ingest.Concurrency,
		RateLimit:   cfg.Ingest.RateLimit,
	}, logger)

	var recordStore *records.Store
	if cfg.Records.URL != "" {
		recordStore = records.Connect(cfg.Records.URL, cfg.Records.Password, cfg.Records.Verbose)
		defer recordStore.Close()
	}

	switch {
	case flags.serve:
		return serve(cfg, pipeline, recordStore, logger)
	case flags.backfill:
		return runBackfill(ctx, cfg, pipeline, recordStore)
	case flags.ingestDoc != "":
		return ingestDocument(ctx, pipeline, flags.ingestDoc)
	default:
		return askLoop(ctx, pipeline)
	}
}

func serve(cfg *cfgPkg.Config, pipeline *rag.Pipeline, recordStore *records.Store, logger zerolog.Logger) error {
	var source rag.RecordSource
	if recordStore != nil {
		source = recordStore
	}
	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		DocsDir:           cfg.Server.DocsDir,
		BackfillField:     cfg.Ingest.BackfillField,
		BackfillBatchSize: cfg.Ingest.BatchSize,
	}, pipeline, source, logger)
	return srv.ListenAndServe()
}

func runBackfill(ctx context.Context, cfg *cfgPkg.Config, pipeline *rag.Pipeline, recordStore *records.Store) error {
	if recordStore == nil {
		return fmt.Errorf("backfill requires records.url (or RECORDS_DATABASE_URL)")
	}

	bar := getProgressBar(-1, " Backfilling vector index...")
	stats, err := pipeline.Backfill(ctx, recordStore, rag.BackfillOptions{
		Field:     cfg.Ingest.BackfillField,
		BatchSize: cfg.Ingest.BatchSize,
		OnRecord:  func(string) { bar.Add(1) },
	})
	bar.Finish()
	if err != nil {
		return err
	}

	color.Green("\n✓ Backfilled %d records into %d chunks (%d failed)\n", stats.Records, stats.Chunks, stats.Failed)
	return nil
}

func ingestDocument(ctx context.Context, pipeline *rag.Pipeline, path string) error {
	pages, err := extract.PDFPages(path)
	if err != nil {
		return err
	}

	name := strings.ToLower(strings.ReplaceAll(filepath.Base(path), " ", "-"))
	docID := strings.TrimSuffix(name, filepath.Ext(name))
	bar := getProgressBar(len(pages), " Ingesting document pages...")
	total := 0
	for _, page := range pages {
		if page.Text != "" {
			ref := rag.FieldRef{
				SourceTable: "documents",
				SourcePK:    docID,
				Field:       fmt.Sprintf("page_%d", page.Number),
			}
			n, err := pipeline.IngestField(ctx, ref, page.Text, nil)
			if err != nil {
				bar.Finish()
				return err
			}
			total += n
		}
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\n✓ Ingested %d pages into %d chunks\n", len(pages), total)
	return nil
}

func askLoop(ctx context.Context, pipeline *rag.Pipeline) error {
	color.Cyan("\nAsk about your operational records (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		spinner := getSpinner(" Searching records...")
		result, err := pipeline.Answer(ctx, question)
		spinner.Finish()

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", result.Answer)
		if len(result.Citations) > 0 {
			fmt.Println()
			for _, c := range result.Citations {
				color.Blue("  [%s:%s] %s", c.SourceTable, c.SourcePK, snippet(c.Content, 80))
			}
		}
	}

	return scanner.Err()
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
