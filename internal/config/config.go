// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 実行環境
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// アカウント連携ポリシー
const (
	LinkPolicyDestructive = "destructive"
	LinkPolicyVerified    = "verified"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Runtime
	AppEnv string

	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	CORSAllowedOrigin string
	WebhookSecret     string
	RateLimitActions  int

	// Ceramic / IDX
	CeramicURL                string
	BasicProfileDefinition    string
	ExtendedProfileDefinition string
	AlsoKnownAsDefinition     string
	LegacyProfileURL          string
	ExternalTimeout           time.Duration

	// Discord
	DiscordBotToken string
	DiscordGuildID  string

	// Account linking
	LinkPolicy               string
	LinkAttestationIssuer    string
	LinkAttestationPublicKey string
	AccountUpsertConcurrency int

	// Refresh worker
	RefreshInterval      time.Duration
	RefreshMaxConcurrent int
	RefreshBatchSize     int
	ProfileTTL           time.Duration

	// Seed
	SeedProductionGraphQLURL string
	SeedAccountMigrationURL  string
	SeedNumPlayers           int
}

// IsProduction は本番環境かを返す。Discordロール同期は本番のみ有効。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.AppEnv = strings.ToLower(getEnvString("APP_ENV", EnvDevelopment))

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	if cfg.IsProduction() && cfg.DiscordBotToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}

	cfg.LinkPolicy = strings.ToLower(getEnvString("LINK_POLICY", LinkPolicyDestructive))
	cfg.LinkAttestationIssuer = os.Getenv("LINK_ATTESTATION_ISSUER")
	cfg.LinkAttestationPublicKey = os.Getenv("LINK_ATTESTATION_PUBLIC_KEY")
	if cfg.LinkPolicy == LinkPolicyVerified {
		if cfg.LinkAttestationIssuer == "" {
			missing = append(missing, "LINK_ATTESTATION_ISSUER")
		}
		if cfg.LinkAttestationPublicKey == "" {
			missing = append(missing, "LINK_ATTESTATION_PUBLIC_KEY")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.LinkPolicy != LinkPolicyDestructive && cfg.LinkPolicy != LinkPolicyVerified {
		return nil, fmt.Errorf("invalid LINK_POLICY %q: must be %q or %q",
			cfg.LinkPolicy, LinkPolicyDestructive, LinkPolicyVerified)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "4000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.WebhookSecret = getEnvString("WEBHOOK_SECRET", "")
	cfg.RateLimitActions = getEnvInt("RATE_LIMIT_ACTIONS", 60)

	cfg.CeramicURL = strings.TrimRight(getEnvString("CERAMIC_URL", "https://ceramic.metagame.wtf"), "/")
	cfg.BasicProfileDefinition = getEnvString("BASIC_PROFILE_DEFINITION",
		"kjzl6cwe1jw145cjbeko9kil8g9bxszjhyde21ob8epxuxkaon1izyqsu8wgcic")
	cfg.AlsoKnownAsDefinition = getEnvString("ALSO_KNOWN_AS_DEFINITION",
		"kjzl6cwe1jw146zfmqa10a5x1vry6au3t362p44uttz4l0k4hi88o41zplhmxnf")
	cfg.ExtendedProfileDefinition = getEnvString("EXTENDED_PROFILE_DEFINITION", "")
	cfg.LegacyProfileURL = strings.TrimRight(getEnvString("LEGACY_PROFILE_URL", "https://ipfs.3box.io"), "/")
	cfg.ExternalTimeout = getEnvDuration("EXTERNAL_TIMEOUT", 15*time.Second)

	cfg.DiscordGuildID = getEnvString("DISCORD_GUILD_ID", "629411177947987986")
	cfg.AccountUpsertConcurrency = getEnvInt("ACCOUNT_UPSERT_CONCURRENCY", 4)

	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 10*time.Minute)
	cfg.RefreshMaxConcurrent = getEnvInt("REFRESH_MAX_CONCURRENT", 4)
	cfg.RefreshBatchSize = getEnvInt("REFRESH_BATCH_SIZE", 100)
	cfg.ProfileTTL = getEnvDuration("PROFILE_TTL", 24*time.Hour)

	cfg.SeedProductionGraphQLURL = getEnvString("PRODUCTION_GRAPHQL_URL", "https://api.metagame.wtf/v1/graphql")
	// 未設定の場合、シード時のアカウント移行呼び出しは行わない
	cfg.SeedAccountMigrationURL = os.Getenv("LOCAL_BACKEND_ACCOUNT_MIGRATION_URL")
	cfg.SeedNumPlayers = getEnvInt("SEED_NUM_PLAYERS", 300)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
