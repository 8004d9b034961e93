package config

import (
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

type Config struct {
	Input         string
	Delimiter     rune
	Port          int
	LogLevel      string
	HFToken       string
	HFEndpoint    string
	DatabaseURL   string
	NatsURL       string
	NatsToken     string
	SlackBotToken string
	SlackChannel  string
	ArchiveBucket string
	ArchivePrefix string
	S3Region      string
	S3Endpoint    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real env vars win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Input:         envStr("TSVHUB_INPUT", "forbidden-code-writing.tsv"),
		Delimiter:     envDelim("TSVHUB_DELIMITER", '\t'),
		Port:          envInt("TSVHUB_PORT", 8760),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		HFToken:       envStr("HF_TOKEN", ""),
		HFEndpoint:    envStr("HF_ENDPOINT", "https://huggingface.co"),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
		ArchiveBucket: envStr("ARCHIVE_BUCKET", ""),
		ArchivePrefix: envStr("ARCHIVE_PREFIX", "tsvhub"),
		S3Region:      envStr("S3_REGION", "us-east-1"),
		S3Endpoint:    envStr("S3_ENDPOINT", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDelim accepts a single character or the escaped forms `\t` and "tab".
// Characters encoding/csv cannot split on fall back to the default.
func envDelim(key string, fallback rune) rune {
	v := os.Getenv(key)
	switch v {
	case "":
		return fallback
	case `\t`, "tab":
		return '\t'
	}
	if utf8.RuneCountInString(v) != 1 {
		return fallback
	}
	r, _ := utf8.DecodeRuneInString(v)
	if !validDelim(r) {
		return fallback
	}
	return r
}

func validDelim(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
