package models

import (
	"time"

	"polychat/internal/llm"
)

// Bot is a published bot: a fixed system prompt plus model configuration
// that callers invoke through a bot-scoped API key. The configuration is
// read-only input to the provider adapter on every invocation.
type Bot struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	SystemContext string     `json:"system_context"`
	ModelID       string     `json:"model_id"`
	Kwargs        llm.Kwargs `json:"kwargs"`
	APIKey        string     `json:"api_key,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
