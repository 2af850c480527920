package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/viewer"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "VIEWER_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "http://localhost:3001",
	}
	roomId = configVar[string]{
		envKey:       "VIEWER_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
	}
	displayName = configVar[string]{
		envKey:       "VIEWER_DISPLAY_NAME",
		flagKey:      "display-name",
		defaultValue: "",
	}
	syncInterval = configVar[time.Duration]{
		envKey:       "VIEWER_SYNC_INTERVAL",
		flagKey:      "sync-interval",
		defaultValue: 5 * time.Second,
	}
	onJoinPrompt = configVar[string]{
		envKey:       "VIEWER_ON_JOIN_PROMPT",
		flagKey:      "on-join-prompt",
		defaultValue: string(viewer.PromptAsk),
	}
	logLevel = configVar[string]{
		envKey:       "VIEWER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "WARN",
	}
)

func loadViewerConfig() *viewer.Config {
	// .env is optional
	_ = godotenv.Load()

	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Server base url")
	pflag.String(roomId.flagKey, roomId.defaultValue, "Room to join, empty to create one")
	pflag.String(displayName.flagKey, displayName.defaultValue, "Display name shown to the room")
	pflag.Duration(syncInterval.flagKey, syncInterval.defaultValue, "Time sync interval")
	pflag.String(onJoinPrompt.flagKey, onJoinPrompt.defaultValue, "Answer to the join prompt: ask, catch-up or start-over")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(roomId.flagKey, roomId.envKey)
	viper.BindEnv(displayName.flagKey, displayName.envKey)
	viper.BindEnv(syncInterval.flagKey, syncInterval.envKey)
	viper.BindEnv(onJoinPrompt.flagKey, onJoinPrompt.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)

	viper.SetDefault(serverURL.flagKey, serverURL.defaultValue)
	viper.SetDefault(roomId.flagKey, roomId.defaultValue)
	viper.SetDefault(displayName.flagKey, displayName.defaultValue)
	viper.SetDefault(syncInterval.flagKey, syncInterval.defaultValue)
	viper.SetDefault(onJoinPrompt.flagKey, onJoinPrompt.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)

	return &viewer.Config{
		ServerURL:    viper.GetString(serverURL.flagKey),
		RoomId:       viper.GetString(roomId.flagKey),
		DisplayName:  viper.GetString(displayName.flagKey),
		SyncInterval: viper.GetDuration(syncInterval.flagKey),
		OnJoinPrompt: viewer.PromptPolicy(viper.GetString(onJoinPrompt.flagKey)),
		LogLevel:     viper.GetString(logLevel.flagKey),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewerConfig := loadViewerConfig()
	if err := viewerConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(viewerConfig, "", "  ")
	fmt.Printf("starting viewer with config: %s\n", jsonConfig)

	if err := viewer.Run(ctx, viewerConfig, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}
