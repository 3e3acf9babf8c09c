package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/luminara-health/copilot/internal/api/handlers"
	"github.com/luminara-health/copilot/internal/config"
	"github.com/luminara-health/copilot/internal/database"
	"github.com/luminara-health/copilot/internal/jobs"
	"github.com/luminara-health/copilot/internal/openai"
	"github.com/luminara-health/copilot/internal/repository"
	"github.com/luminara-health/copilot/internal/server"
	"github.com/luminara-health/copilot/internal/service"
	"github.com/luminara-health/copilot/internal/storage"
	"github.com/luminara-health/copilot/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the copilot API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-sweeper", false, "Disable the zero-chunk source sweeper")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	deps, err := buildServices(ctx, cfg, pool)
	if err != nil {
		return err
	}

	routerCfg := server.RouterConfig{
		IngestHandler:  handlers.NewIngestHandler(deps.ingest),
		QueryHandler:   handlers.NewQueryHandler(deps.answers, deps.retrieval),
		SourceHandler:  handlers.NewSourceHandler(deps.sources, deps.chunks),
		SessionHandler: handlers.NewSessionHandler(deps.sessions),
	}
	router := server.NewRouter(routerCfg)

	var sweepWorker *jobs.Worker
	noSweeper, _ := cmd.Flags().GetBool("no-sweeper")
	if !noSweeper {
		sweeper := jobs.NewSweeper(deps.sources, cfg.SweepMinAge)
		sweepWorker = jobs.NewWorker(sweeper, cfg.SweepInterval)
		go sweepWorker.Start(ctx)
		log.Println("zero-chunk source sweeper started")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if sweepWorker != nil {
		sweepWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type serviceDeps struct {
	ingest    *service.IngestService
	retrieval *service.RetrievalService
	answers   *service.AnswerService
	sources   *repository.SourceRepository
	chunks    *repository.ChunkRepository
	sessions  *repository.ChatRepository
}

func buildServices(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*serviceDeps, error) {
	sourceRepo := repository.NewSourceRepository(pool)
	transcriptRepo := repository.NewTranscriptRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	chatRepo := repository.NewChatRepository(pool)

	var aiClient *openai.Client
	if cfg.HasOpenAI() {
		aiClient = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
		})
		log.Println("OpenAI client configured")
	} else {
		log.Println("OPENAI_API_KEY not set: ingestion and query endpoints will report a configuration error")
	}

	var archiver service.TextArchiver
	if cfg.HasS3() {
		archiveClient, err := storage.NewArchiveClient(ctx, storage.ArchiveClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create archive client: %w", err)
		}
		if err := archiveClient.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		log.Printf("archive bucket '%s' ready", cfg.S3Bucket)
		archiver = archiveClient
	}

	chunkCfg := service.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	if err := chunkCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	// Services treat a nil embedder as "not configured", so the interface must
	// stay nil rather than wrap a nil *openai.Client.
	var embedder service.EmbeddingClient
	var generator service.GenerationClient
	if aiClient != nil {
		embedder = aiClient
		generator = aiClient
	}

	ingestSvc := service.NewIngestServiceWithConfig(sourceRepo, transcriptRepo, chunkRepo, embedder, archiver, chunkCfg)
	retrievalSvc := service.NewRetrievalService(embedder, chunkRepo)
	answerSvc := service.NewAnswerService(retrievalSvc, generator, chatRepo)

	return &serviceDeps{
		ingest:    ingestSvc,
		retrieval: retrievalSvc,
		answers:   answerSvc,
		sources:   sourceRepo,
		chunks:    chunkRepo,
		sessions:  chatRepo,
	}, nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
