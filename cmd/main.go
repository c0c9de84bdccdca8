package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"sparkchat/auth"
	"sparkchat/domain"
	"sparkchat/infrastructure/storage"
	"sparkchat/matchmaking"
	"sparkchat/moderation"
	"sparkchat/observability"
	"sparkchat/runtime"
	"sparkchat/runtime/workers"
	"sparkchat/services"
	"sparkchat/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like closing the Redis client) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	modes, err := parseModes(config.Modes)
	if err != nil {
		return err
	}

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage (Redis)
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", config.RedisAddr, err)
	}
	defer func() {
		log.Info("Closing Redis client...")
		_ = client.Close()
	}()

	queueRepository := storage.NewQueueRepository(client, log, config.QueueKeyPrefix)
	snapshotRepository := storage.NewSnapshotRepository(client, log, config.SnapshotKeyPrefix, config.SnapshotTTL)

	// 4. Core runtime wiring
	matchmaker := matchmaking.New(queueRepository, log, config.MaxAgeGap)
	registry := runtime.NewRegistry(log, snapshotRepository, matchmaker)

	moderator, err := buildModerator(config)
	if err != nil {
		return err
	}
	rooms := runtime.NewRoomTable(log, registry, moderator)
	service := services.NewChatService(log, registry, rooms, matchmaker)

	monitor, err := observability.NewMonitor()
	if err != nil {
		return fmt.Errorf("process monitor init failed: %w", err)
	}

	// 5. Background workers under supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewMatchLoopWorker(log, matchmaker, registry, modes, config.MatchTickDelay, config.MatchNotifyDelay),
		workers.NewStatsWorker(log, monitor, matchmaker, config.StatsInterval),
	)
	go sup.Run(ctx)

	// 6. HTTP & websocket transport
	tokens := auth.NewTokenManager(config.TokenSecret, config.TokenDuration)
	var captcha *auth.CaptchaVerifier
	if config.HCaptchaEnabled {
		captcha = auth.NewCaptchaVerifier(config.HCaptchaSecret)
	}

	server := ws.NewServer(log, service, tokens, captcha, monitor)
	handler := ws.CORS(splitCSV(config.AllowedOrigins), server.Routes())

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: handler}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown interrupted", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func parseModes(raw string) ([]domain.Mode, error) {
	names := splitCSV(raw)
	if len(names) == 0 {
		return nil, fmt.Errorf("MODES must list at least one mode")
	}
	modes := make([]domain.Mode, 0, len(names))
	for _, name := range names {
		mode, err := domain.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("MODES: %w", err)
		}
		modes = append(modes, mode)
	}
	return modes, nil
}

func buildModerator(config Config) (*moderation.Moderator, error) {
	if config.ModerationWordsPath == "" {
		return nil, nil
	}
	replacement, err := replacementRune(config.ModerationCharReplacement)
	if err != nil {
		return nil, err
	}
	words, err := moderation.LoadWordList(config.ModerationWordsPath)
	if err != nil {
		return nil, fmt.Errorf("moderation word list: %w", err)
	}
	return moderation.NewModerator(words, replacement)
}

func replacementRune(raw string) (rune, error) {
	runes := []rune(raw)
	if len(runes) != 1 {
		return 0, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", raw)
	}
	return runes[0], nil
}

func splitCSV(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(s)
		return trimmed, trimmed != ""
	})
}
