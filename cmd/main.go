package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"nimbusdrive/internal/config"
	"nimbusdrive/internal/handler"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service"
	"nimbusdrive/internal/service/s3"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.Database.GetURL())
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	blobStorage, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Инициализация репозиториев
	nodeRepo := repository.NewNodeRepository(db)
	shareRepo := repository.NewShareRepository(db)
	quotaRepo := repository.NewStorageQuotaRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Инициализация сервисов
	locks := service.NewUserLocks()
	activitySink := service.NewActivitySink(activityRepo)
	defer activitySink.Close()

	quotaService := service.NewStorageQuotaService(quotaRepo, nodeRepo, appConfig.Quota.DefaultBytesLimit)
	usageService := service.NewUsageService(quotaRepo, quotaService, appConfig.Quota.DefaultBytesLimit)
	treeService := service.NewTreeService(nodeRepo, quotaService, usageService, blobStorage, locks, activitySink)
	trashService := service.NewTrashService(nodeRepo, trashRepo, blobStorage, usageService, locks, activitySink,
		appConfig.Trash.RetentionPeriod)
	shareService := service.NewShareService(shareRepo, nodeRepo, activitySink)

	// Инициализация хендлеров
	nodeHandler := handler.NewNodeHandler(treeService, trashService, shareService)
	trashHandler := handler.NewTrashHandler(trashService)
	shareHandler := handler.NewShareHandler(shareService)
	quotaHandler := handler.NewStorageQuotaHandler(quotaService, usageService, activitySink)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/nodes/folders", nodeHandler.CreateFolder)
		r.Post("/nodes/files", nodeHandler.UploadFile)
		r.Get("/nodes", nodeHandler.ListChildren)

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Get("/", nodeHandler.GetNode)
			r.Get("/children", nodeHandler.ListChildren)
			r.Get("/download", nodeHandler.DownloadFile)
			r.Put("/rename", nodeHandler.Rename)
			r.Put("/move", nodeHandler.Move)
			r.Post("/copy", nodeHandler.Copy)
			r.Delete("/", nodeHandler.Delete)
		})

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.GetTrashItems)
			r.Post("/empty", trashHandler.EmptyTrash)
			r.Post("/restore", trashHandler.RestoreItem)
			r.Post("/delete", trashHandler.DeletePermanently)
			r.Get("/settings", trashHandler.GetSettings)
			r.Put("/settings", trashHandler.UpdateSettings)
		})

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shareHandler.CreateShare)
			r.Delete("/", shareHandler.RevokeShare)
			r.Get("/shared-with-me", shareHandler.GetSharedWithMe)
			r.Get("/{id}/permission", shareHandler.GetEffectivePermission)
			r.Get("/{id}/grants", shareHandler.ListGrants)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuotaInfo)
			r.Put("/limit", quotaHandler.UpdateQuotaLimit)
		})

		r.Get("/usage", quotaHandler.GetUsage)
		r.Get("/activity", quotaHandler.GetActivity)
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Запускаем очистку корзины
	cleanupTicker := time.NewTicker(appConfig.Trash.CleanupInterval)
	go func() {
		for {
			select {
			case <-cleanupTicker.C:
				ctx := context.Background()
				purged, err := trashService.PurgeExpired(ctx)
				if err != nil {
					log.Printf("Error during trash auto cleanup: %v", err)
					continue
				}
				if purged > 0 {
					log.Printf("Trash auto cleanup purged %d nodes", purged)
				}
			case <-quit:
				cleanupTicker.Stop()
				return
			}
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	// Закрываем соединение с БД
	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
