package viewer

import (
	"fmt"
	"time"

	"github.com/watchroom/server/pkg/validator"
)

type PromptPolicy string

const (
	PromptAsk       PromptPolicy = "ask"
	PromptCatchUp   PromptPolicy = "catch-up"
	PromptStartOver PromptPolicy = "start-over"
)

type Config struct {
	ServerURL    string        `json:"server_url" validate:"required,url"`
	RoomId       string        `json:"room_id" validate:"max=64"`
	DisplayName  string        `json:"display_name" validate:"max=32"`
	SyncInterval time.Duration `json:"sync_interval" validate:"gt=0"`
	OnJoinPrompt PromptPolicy  `json:"on_join_prompt" validate:"oneof=ask catch-up start-over"`
	LogLevel     string        `json:"log_level"`
}

func (cfg *Config) Validate() error {
	if err := validator.NewValidator().Validate(cfg); err != nil {
		return err
	}
	if _, err := WebsocketURL(cfg.ServerURL); err != nil {
		return fmt.Errorf("server url: %w", err)
	}

	return nil
}
