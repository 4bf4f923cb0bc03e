// Command loadvectors embeds a JSONL knowledge base and upserts it into the
// configured Pinecone index.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/embedding"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/logging"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
)

var (
	filePath  string
	batchSize int
	useDemo   bool
)

var rootCmd = &cobra.Command{
	Use:   "loadvectors",
	Short: "Embed knowledge base documents and upsert them into the vector index",
	Long: `Reads one {"id","text","metadata"} object per line, embeds the text with the
configured embedding provider and upserts the vectors in batches.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&filePath, "file", "f", "", "JSONL file with documents")
	rootCmd.Flags().IntVarP(&batchSize, "batch", "b", 100, "upsert batch size")
	rootCmd.Flags().BoolVar(&useDemo, "demo-docs", false, "load the built-in demo documents instead of a file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if filePath == "" && !useDemo {
		return fmt.Errorf("either --file or --demo-docs is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DemoMode {
		return fmt.Errorf("demo mode uses the in-memory index; unset USE_DEMO_MODE to load Pinecone")
	}

	log, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := vectordb.DemoDocuments
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer f.Close()
		if docs, err = vectordb.ReadDocuments(f); err != nil {
			return fmt.Errorf("read %s: %w", filePath, err)
		}
	}

	emb, err := embedding.New(ctx, cfg.Embedding, cfg.LLM)
	if err != nil {
		return err
	}
	store, err := vectordb.NewPineconeStore(ctx, cfg.Vector.PineconeKey, cfg.Vector.Index, cfg.Vector.Namespace)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	log.Info("loading documents",
		zap.Int("documents", len(docs)),
		zap.String("embedder", emb.Name()),
		zap.String("index", store.Name()))

	n, err := vectordb.Load(ctx, store, emb, docs, batchSize)
	if err != nil {
		log.Error("load failed", zap.Int("upserted", n), zap.Error(err))
		return err
	}
	log.Info("load complete", zap.Int("upserted", n), zap.Duration("took", time.Since(start)))
	return nil
}
