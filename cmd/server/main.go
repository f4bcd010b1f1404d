package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wallet-topup-backend/internal/config"
	handler "wallet-topup-backend/internal/handlers"
	"wallet-topup-backend/internal/mail"
	"wallet-topup-backend/internal/models"
	"wallet-topup-backend/internal/repository"
	"wallet-topup-backend/internal/routes"
	"wallet-topup-backend/internal/scheduler"
	"wallet-topup-backend/internal/services/reconcile"
	"wallet-topup-backend/internal/services/vietqr"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}

	db.AutoMigrate(
		&models.User{},
		&models.DepositTransaction{},
		&models.EmailNotification{},
	)

	transactionRepo := repository.NewTransactionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	qr := &vietqr.Generator{
		BankCode:      cfg.BankCode,
		AccountNumber: cfg.AccountNumber,
		AccountName:   cfg.AccountName,
	}

	ctx := context.Background()

	var mailSource reconcile.MailSource
	gmailSource, err := mail.NewGmailSource(ctx, cfg.GmailCredentials, logger)
	if err != nil {
		// Deposit creation still works without mail; only auto-confirm is off.
		logger.Warn("gmail source unavailable, ingestion disabled", zap.Error(err))
	} else {
		mailSource = gmailSource
	}

	service := reconcile.NewService(qr, transactionRepo, notificationRepo, mailSource, reconcile.Config{
		AccountNumber: cfg.AccountNumber,
		MailFilter:    cfg.MailFilter,
		MailBatchSize: cfg.MailBatchSize,
		DepositTTL:    cfg.DepositTTL,
	}, logger)

	sched := scheduler.New(logger)
	if mailSource != nil {
		sched.Register("email-ingestion", cfg.IngestInterval, service.IngestOnce)
	}
	sched.Register("expiry-sweep", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := service.ExpireOnce(ctx)
		return err
	})
	sched.Start()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	depositHandler := handler.NewDepositHandler(
		service, transactionRepo, notificationRepo, userRepo,
		cfg.BankCode, cfg.AccountNumber, cfg.AccountName,
	)
	routes.RegisterRoutes(r, depositHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
