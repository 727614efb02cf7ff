// Linkd is the internal linking intelligence daemon.
//
// The binary starts the linkd HTTP server with full service initialization:
// the Qdrant article catalog, OpenAI embeddings, the Anthropic content
// analyst, and the recommendation, audit, and metadata services on top.
//
// Configuration is loaded from an optional YAML file and environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	linkd
//
//	# Configure via environment
//	SERVER_PORT=9090 QDRANT_HOST=qdrant.internal linkd
//
//	# Configure via file
//	linkd --config /etc/linkd/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/audit"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/config"
	"github.com/fyrsmithlabs/linkd/internal/embeddings"
	"github.com/fyrsmithlabs/linkd/internal/entity"
	"github.com/fyrsmithlabs/linkd/internal/ingest"
	"github.com/fyrsmithlabs/linkd/internal/llm"
	"github.com/fyrsmithlabs/linkd/internal/logging"
	"github.com/fyrsmithlabs/linkd/internal/meta"
	"github.com/fyrsmithlabs/linkd/internal/recommend"
	"github.com/fyrsmithlabs/linkd/internal/seo"
	"github.com/fyrsmithlabs/linkd/internal/server"
	"github.com/fyrsmithlabs/linkd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional YAML config file, set via --config.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "linkd",
	Short: "Internal linking intelligence service",
	Long: `linkd serves internal link recommendations, link audits, and SEO
metadata for a content site. Articles are synced into a Qdrant vector
catalog and matched by embedding similarity, topic silo, and funnel stage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("linkd by Fyrsmith Labs\n")
		cmd.Printf("Version:    %s\n", version)
		cmd.Printf("Commit:     %s\n", gitCommit)
		cmd.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx)
}

// run starts the linkd server and blocks until the context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Connect to the Qdrant catalog and ensure the collection
//  4. Create the embedding and LLM clients
//  5. Wire the ingest, recommend, audit, meta, and SEO services
//  6. Start the HTTP server
//  7. Graceful shutdown on SIGINT/SIGTERM
func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting linkd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("domain", cfg.Site.Domain),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Observability.Enabled,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		Protocol:       cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// A model/collection dimension mismatch corrupts every similarity
	// query, so refuse to start rather than degrade.
	if dim := embeddings.Dimensions(cfg.Embeddings.Model); dim != 0 && dim != cfg.Catalog.VectorSize {
		return fmt.Errorf("embedding model %s produces %d-dimension vectors but the catalog is configured for %d",
			cfg.Embeddings.Model, dim, cfg.Catalog.VectorSize)
	}

	store, err := catalog.NewQdrantStore(catalog.QdrantConfig{
		Host:       cfg.Catalog.Host,
		Port:       cfg.Catalog.Port,
		APIKey:     cfg.Catalog.APIKey.Value(),
		UseTLS:     cfg.Catalog.UseTLS,
		Collection: cfg.Catalog.Index,
		VectorSize: uint64(cfg.Catalog.VectorSize),
		Timeout:    cfg.Catalog.Timeout,
		MaxRetries: cfg.Catalog.MaxRetries,
		ListLimit:  cfg.Catalog.ListLimit,
	})
	if err != nil {
		return fmt.Errorf("connecting to catalog: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	logger.Info("catalog ready",
		zap.String("host", cfg.Catalog.Host),
		zap.Int("port", cfg.Catalog.Port),
		zap.String("collection", cfg.Catalog.Index),
		zap.Int("vector_size", cfg.Catalog.VectorSize))

	embedSvc, err := embeddings.NewService(embeddings.Config{
		APIKey:  cfg.Embeddings.APIKey.Value(),
		Model:   cfg.Embeddings.Model,
		BaseURL: cfg.Embeddings.BaseURL,
		Timeout: cfg.Embeddings.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	if !cfg.Embeddings.APIKey.IsSet() {
		logger.Warn("OPENAI_API_KEY not set, article sync and recommendations will fail until configured")
	}

	model, err := llm.New(llm.Config{
		APIKey:            cfg.LLM.APIKey.Value(),
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLM.Timeout,
		BatchTimeout:      cfg.LLM.BatchTimeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	})
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	if !model.Configured() {
		logger.Warn("ANTHROPIC_API_KEY not set, content analysis degrades to heuristic fallbacks")
	}

	lister := catalog.NewCachedLister(store, cfg.SEO.ArticleTTL)
	seoCache := seo.NewCache(lister, store, cfg.Site.Domain, cfg.SEO.RefreshTTL, logger)
	entities := entity.NewRetriever(lister)

	recommendSvc := recommend.NewService(store, embedSvc, model, entities, seoCache, cfg.Site.Domain, logger,
		recommend.Options{
			CacheTTL:        cfg.Recommend.CacheTTL,
			CacheMaxEntries: cfg.Recommend.CacheMaxEntries,
		})

	srv, err := server.NewServer(server.Options{
		Config:               cfg.Server,
		Logger:               logger,
		Store:                store,
		Lister:               lister,
		Ingest:               ingest.NewService(store, lister, embedSvc, model, nil, logger),
		Recommend:            recommendSvc,
		Audit:                audit.NewService(store, embedSvc, logger),
		Meta:                 meta.NewService(store, embedSvc, model, logger),
		SEO:                  seoCache,
		LLMConfigured:        model.Configured(),
		EmbeddingsConfigured: cfg.Embeddings.APIKey.IsSet(),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
