package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/roomchat/config"
	"github.com/example/roomchat/modules/api"
	"github.com/example/roomchat/modules/channel"
	"github.com/example/roomchat/modules/moderation"
	"github.com/example/roomchat/modules/room"
	"github.com/example/roomchat/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	modules, err := newModules(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create modules: %v", err)
	}
	for _, module := range modules {
		if err := app.Register(module); err != nil {
			log.Fatalf("Failed to register module %s: %v", module.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(logger, cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				logger.Info("Graceful shutdown initiated")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}

// newModules builds the application modules in registration order: the
// store first, then the domain modules, then the API. Room and channel
// read the store lazily through the store module.
func newModules(cfg config.Config, logger types.Logger) ([]mono.Module, error) {
	storeModule := store.NewModule(cfg, logger)
	moderationModule := moderation.NewModule(cfg, logger)
	roomModule, err := room.NewModule(storeModule, cfg.RoomCodeLength, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create room module: %w", err)
	}
	channelModule := channel.NewModule(storeModule, logger)
	apiModule := api.NewModule(cfg, logger)

	// The channel holds live subscriptions, which cannot cross the
	// ServiceContainer, so it is injected directly.
	apiModule.SetChannel(channelModule.Channel())

	return []mono.Module{
		storeModule,
		moderationModule,
		roomModule,
		channelModule,
		apiModule,
	}, nil
}

func printStartupInfo(logger types.Logger, cfg config.Config) {
	moderationMode := "disabled (no PERSPECTIVE_API_KEY)"
	if cfg.ModerationEnabled() {
		moderationMode = "enabled"
	}
	cache := "off"
	if cfg.RedisAddr != "" {
		cache = cfg.RedisAddr
	}

	logger.Info("Room chat started",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"moderation", moderationMode,
		"threshold", cfg.ModerationThreshold,
		"verdictCache", cache)
	logger.Info("REST endpoints",
		"endpoints", []string{
			"GET  /health",
			"POST /api/v1/rooms",
			"GET  /api/v1/rooms/:code",
			"GET  /api/v1/rooms/:code/messages",
			"POST /api/v1/moderation/check",
		})
	logger.Info("WebSocket endpoint",
		"url", "ws://localhost:"+cfg.Port+"/ws",
		"frames", []string{"create", "join", "send", "leave", "copy"})
	logger.Info("Press Ctrl+C to shutdown gracefully")
}
