package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/paulexconde/questflow/internal/handlers"
	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/internal/pkg/paginator"
	"github.com/paulexconde/questflow/internal/pkg/store"
	"github.com/paulexconde/questflow/internal/pkg/workerpool"
	"github.com/paulexconde/questflow/internal/server"
	"github.com/paulexconde/questflow/internal/services"
)

func main() {
	log, err := logger.New(getEnv("QUESTFLOW_LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	addr := getEnv("QUESTFLOW_ADDR", ":8080")
	dsn := getEnv("QUESTFLOW_DSN", "postgres://localhost:5432/questflow?sslmode=disable")
	reapInterval := time.Duration(getEnvAsInt("QUESTFLOW_REAP_INTERVAL", 3600, log)) * time.Second

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flowStore := store.NewFlowStore(db)
	typesStore := store.NewDataStore[models.TypeDTO](db, "questionnaire_types")
	typesPaginator := paginator.NewPaginator(typesStore)

	reaper := services.NewReaper(flowStore, log)
	flowService := services.NewFlowService(flowStore, reaper, log)
	questService := services.NewQuestionnaireService(flowStore, typesPaginator, log)

	// Periodic global reap catches rows left behind by saves whose inline
	// reap failed.
	pool := workerpool.NewWorkerPool(ctx, log, 1, 4)
	go func() {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pool.Submit(workerpool.WithRetry(log, 3, 5*time.Second, func() error {
					return flowStore.ReapOrphans(ctx)
				}))
			}
		}
	}()

	router := server.NewRouter(server.RouterConfig{
		FlowHandler:          handlers.NewFlowHandler(log, flowService),
		QuestionnaireHandler: handlers.NewQuestionnaireHandler(log, questService),
	})

	log.Info("starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int, log *logger.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("invalid integer env value, using default", "key", key, "value", v)
		return def
	}
	return n
}
