package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"cliniq/internal/api"
	"cliniq/internal/config"
	"cliniq/internal/fax"
	"cliniq/internal/logger"
	"cliniq/internal/mado"
	"cliniq/internal/mailer"
	"cliniq/internal/monitoring"
	"cliniq/internal/refdata"
	"cliniq/internal/secrets"
	"cliniq/internal/storage"
	"cliniq/internal/telemetry"
	"cliniq/internal/validator"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal", "signal", sig.String())
		cancel()
	}()

	cfg := config.NewConfig()

	// Set up telemetry before the logger so the OTel log bridge has a
	// provider to attach to.
	tel, err := monitoring.NewOpenTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	log := logger.New(cfg)

	// Document storage
	storageConfig := storage.StorageConfig{
		Type:      storage.StorageType(cfg.Storage.Type),
		LocalPath: cfg.Storage.LocalPath,
		S3: &storage.S3Config{
			Bucket:      cfg.Storage.Bucket,
			Region:      cfg.Storage.Region,
			KMSKeyAlias: cfg.Storage.KMSKeyAlias,
		},
	}
	documentStorage, err := storage.NewFactory(storageConfig).CreateStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Fax credentials: env-provided pair for local development, Secrets
	// Manager otherwise.
	var secretProvider secrets.Provider
	if cfg.Fax.User != "" {
		secretProvider = secrets.NewStaticProvider(map[string]secrets.Credentials{
			cfg.Fax.SecretName: {User: cfg.Fax.User, Password: cfg.Fax.Password},
		})
	} else {
		secretProvider, err = secrets.NewSecretsManagerProvider(cfg.Storage.Region)
		if err != nil {
			return fmt.Errorf("failed to initialize secrets provider: %w", err)
		}
	}

	refData := refdata.NewFileRepository(
		cfg.Mado.TemplatePath,
		cfg.Mado.FieldMapPath,
		cfg.Mado.RecipientsPath,
	)

	docMailer, err := mailer.NewSESMailer(cfg.Email.Region, cfg.Email.Sender)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	draftStore := mado.NewDraftStore(documentStorage)
	faxClient := fax.NewInterFAXClient(cfg.Fax.APIURL)
	service := mado.NewService(
		log.Logger,
		draftStore,
		refData,
		secretProvider,
		faxClient,
		docMailer,
		tel,
		cfg.Mado,
		cfg.Fax.SecretName,
	)

	handler := api.NewHandler(log.Logger, service, validator.New())

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))

	// Rate limiting for the mutating endpoints
	madoLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	app.Get("/health", handler.Healthy)
	app.Post("/mado/generate", madoLimiter, handler.GenerateMado)
	app.Post("/mado/send", madoLimiter, handler.SendMado)
	app.Get("/mado/drafts/:id", handler.GetDraft)

	if storage.StorageType(cfg.Storage.Type) == storage.StorageTypeLocal {
		// Local storage has no presigned URLs; serve objects directly.
		app.Static("/files", cfg.Storage.LocalPath)
	}

	errChan := make(chan error, 1)
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("starting server", "addr", addr)
		errChan <- app.Listen(addr)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}
