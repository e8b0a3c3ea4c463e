package main

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/auditforge/auditforge/internal/application"
	appaudits "github.com/auditforge/auditforge/internal/application/audits"
	"github.com/auditforge/auditforge/internal/application/pipeline"
	"github.com/auditforge/auditforge/internal/config"
	"github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/contracts"
	openaiAnalyzer "github.com/auditforge/auditforge/internal/infra/ai/openai"
	staticAnalyzer "github.com/auditforge/auditforge/internal/infra/analyzer/static"
	mysqlp "github.com/auditforge/auditforge/internal/infra/db/mysql"
	postgresp "github.com/auditforge/auditforge/internal/infra/db/postgres"
	"github.com/auditforge/auditforge/internal/infra/httpserver"
	"github.com/auditforge/auditforge/internal/infra/notify"
	"github.com/auditforge/auditforge/internal/infra/pubsub"
	"github.com/auditforge/auditforge/internal/infra/queue"
	"github.com/auditforge/auditforge/internal/infra/report"
	minioStore "github.com/auditforge/auditforge/internal/infra/storage"
	"github.com/auditforge/auditforge/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database, driver dipilih dari config
	var (
		db           *sql.DB
		auditRepo    audits.RecordStore
		contractRepo contracts.Store
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		auditRepo = postgresp.NewAuditRepository(db)
		contractRepo = postgresp.NewContractRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		auditRepo = mysqlp.NewAuditRepository(db)
		contractRepo = mysqlp.NewContractRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init job queue + progress hub
	jobs := queue.NewStore()
	defer jobs.Close()
	hub := pubsub.NewHub()

	// init analyzers
	static := staticAnalyzer.NewAnalyzer(cfg.Static.Image, cfg.StaticTimeout())
	aiClient := openaiAnalyzer.NewAnalyzer(cfg.OpenAI.APIKey, cfg.OpenAI.Models, cfg.AITimeout())

	// init pipeline executor
	exec := &pipeline.Executor{
		Queue:   jobs,
		Records: auditRepo,
		Static:  static,
		AI:      aiClient,
		Reports: report.NewGenerator(cfg.Reports.Dir),
		Notify:  notify.NewLogNotifier(),
		Archive: store,
		Hub:     hub,
		Clock:   application.SystemClock{},
		Workers: map[audits.Kind]int{
			audits.KindStatic: cfg.Workers.Static,
			audits.KindAI:     cfg.Workers.AI,
			audits.KindFull:   cfg.Workers.Full,
		},
	}
	execCtx, execCancel := context.WithCancel(ctx)
	exec.Start(execCtx)

	// init service facade
	svc := &appaudits.Service{
		Contracts: contractRepo,
		Records:   auditRepo,
		Queue:     jobs,
		Hub:       hub,
		Clock:     application.SystemClock{},
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Use(middleware.RateLimitMiddleware(60, 1))
	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"queue":    &middleware.QueueHealthChecker{Ping: jobs.Ping},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc, hub))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// drain workers, stop accepting jobs
	jobs.Close()
	execCancel()
	exec.Stop()
}
