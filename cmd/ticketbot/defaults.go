package main

import (
	"time"

	"github.com/quailyquaily/ticketbot/internal/notion"
	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("file_state_dir", "~/.ticketbot")

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.send_timeout", 15*time.Second)
	viper.SetDefault("telegram.max_concurrency", 3)

	viper.SetDefault("ticket.idle_timeout", time.Duration(0))
	viper.SetDefault("ticket.submit_timeout", 30*time.Second)

	viper.SetDefault("notion.base_url", notion.DefaultBaseURL)
	viper.SetDefault("notion.version", notion.DefaultVersion)
	viper.SetDefault("notion.timeout", 30*time.Second)

	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.path", "")
	viper.SetDefault("audit.rotate_max_bytes", int64(10*1024*1024))
}
