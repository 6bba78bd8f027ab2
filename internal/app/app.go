package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/watchroom/server/internal/controller"
	chatRedis "github.com/watchroom/server/internal/repository/chat/redis"
	"github.com/watchroom/server/internal/repository/connection/inmemory"
	eventsRedis "github.com/watchroom/server/internal/repository/events/redis"
	moderationRedis "github.com/watchroom/server/internal/repository/moderation/redis"
	roommetaRedis "github.com/watchroom/server/internal/repository/roommeta/redis"
	"github.com/watchroom/server/internal/repository/wssender"
	"github.com/watchroom/server/internal/room"
	"github.com/watchroom/server/internal/spam"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	LogLevel         string `json:"log_level"`
	EmptyRoomGraceS  int    `json:"empty_room_grace_seconds"`
	ChatHistoryLimit int    `json:"chat_history_limit"`
	RedisHost        string `json:"redis_host"`
	RedisPort        int    `json:"redis_port"`
	RedisPassword    string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.EmptyRoomGraceS < 1 {
		return fmt.Errorf("empty room grace must be greater than 0")
	}
	if cfg.ChatHistoryLimit < 1 {
		return fmt.Errorf("chat history limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(h)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	moderationRepo := moderationRedis.NewRepo(rc, logger)
	chatRepo := chatRedis.NewRepo(rc, cfg.ChatHistoryLimit, logger)
	metaRepo := roommetaRedis.NewRepo(rc, logger)
	publisher := eventsRedis.NewPublisher(rc, logger)
	connRepo := inmemory.NewRepo(logger)
	sender := wssender.NewSender(connRepo, logger)
	governor := spam.NewGovernor()

	registry := room.NewRegistry(&room.RegistryParams{
		ModerationRepo: moderationRepo,
		ChatRepo:       chatRepo,
		MetaRepo:       metaRepo,
		Governor:       governor,
		Publisher:      publisher,
		Sender:         sender,
		Logger:         logger,
		Config: &room.Config{
			EmptyRoomGrace: time.Duration(cfg.EmptyRoomGraceS) * time.Second,
		},
	})
	defer registry.Shutdown()

	ctrl := controller.NewController(&controller.NewControllerParams{
		Registry: registry,
		ConnRepo: connRepo,
		MetaRepo: metaRepo,
		ChatRepo: chatRepo,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ctrl.GetMux(),
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
