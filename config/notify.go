package config

// NotifyConfig holds the Telegram notification settings. Notification is
// optional: with an empty token the pipeline runs with a no-op notifier.
type NotifyConfig struct {
	TelegramBotToken string `json:"telegram_bot_token,omitempty" yaml:"telegram_bot_token,omitempty" toml:"telegram_bot_token,omitempty"`
	TelegramChatID   int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty" toml:"telegram_chat_id,omitempty"`
}

// Enabled reports whether Telegram notification is configured.
func (nc *NotifyConfig) Enabled() bool {
	return nc.TelegramBotToken != "" && nc.TelegramChatID != 0
}
