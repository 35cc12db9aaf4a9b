package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	SolanaRPCURL       string
	TreasuryPrivateKey string

	SessionDuration time.Duration
	LeaderboardSize int

	MinPayoutLamports      uint64
	BaseReserveLamports    uint64
	PerTransferFeeLamports uint64

	SettleInterval time.Duration

	IPRateLimit       int
	IPRateWindow      time.Duration
	WalletClickLimit  int
	WalletClickWindow time.Duration
}

// Load reads configuration from SOLMINE_-prefixed environment variables with
// production defaults for everything except credentials.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOLMINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service_name", "solmine")
	v.SetDefault("http_port", "8080")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("solana_rpc_url", "")
	v.SetDefault("treasury_private_key", "")
	v.SetDefault("session_duration", "2m")
	v.SetDefault("leaderboard_size", 50)
	v.SetDefault("min_payout_lamports", 5_000)
	v.SetDefault("base_reserve_lamports", 10_000_000)
	v.SetDefault("per_transfer_fee_lamports", 5_000)
	v.SetDefault("settle_interval", "5s")
	v.SetDefault("ip_rate_limit", 1000)
	v.SetDefault("ip_rate_window", "1m")
	v.SetDefault("wallet_click_limit", 25)
	v.SetDefault("wallet_click_window", "1s")

	return Config{
		ServiceName: v.GetString("service_name"),
		HTTPPort:    v.GetString("http_port"),
		PostgresDSN: v.GetString("postgres_dsn"),

		SolanaRPCURL:       v.GetString("solana_rpc_url"),
		TreasuryPrivateKey: v.GetString("treasury_private_key"),

		SessionDuration: v.GetDuration("session_duration"),
		LeaderboardSize: v.GetInt("leaderboard_size"),

		MinPayoutLamports:      v.GetUint64("min_payout_lamports"),
		BaseReserveLamports:    v.GetUint64("base_reserve_lamports"),
		PerTransferFeeLamports: v.GetUint64("per_transfer_fee_lamports"),

		SettleInterval: v.GetDuration("settle_interval"),

		IPRateLimit:       v.GetInt("ip_rate_limit"),
		IPRateWindow:      v.GetDuration("ip_rate_window"),
		WalletClickLimit:  v.GetInt("wallet_click_limit"),
		WalletClickWindow: v.GetDuration("wallet_click_window"),
	}, nil
}
