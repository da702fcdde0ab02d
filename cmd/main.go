package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"code-scanner/config"
	httpapi "code-scanner/internal/api/http"
	"code-scanner/internal/api/telegram"
	"code-scanner/internal/container"
	"code-scanner/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run возвращает ошибку вместо выхода, чтобы отработали все defer
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger("code-scanner", logging.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Собираем сервисы приложения
	appContainer, err := container.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer appContainer.Close()

	handler := httpapi.NewHandler(appContainer.ScanService, appContainer.Images, cfg.MaxUploadBytes, logger.With("http"))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Бот создаётся до старта сервера: ошибка токена не оставляет висящий listener
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.ScanService, cfg.MaxUploadBytes, logger.With("telegram"))
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, bot is disabled")
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server starting", "addr", srv.Addr, "upload_dir", cfg.UploadDir, "detector", cfg.Detector)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	if bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				logger.Error("bot stopped", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	wg.Wait()
	logger.Info("stopped")
	return nil
}
