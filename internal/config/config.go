// Package config loads runtime settings from flags, environment variables,
// and an optional YAML file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

/*
YAML config example:
telegram_token: "123456:ABC..."
allowed_user_id: 42
mexc_api_key: "..."
mexc_secret_key: "..."
paper_mode: true
max_order_usdt: 300
watchlist: ["SOLUSDT", "BTCUSDT"]
scan_interval: 15m
kline_interval: "1h"
kline_limit: 100
tp1_percent: 3.0
tp2_percent: 6.0
sl_percent: 2.0
signal_cooldown: 2h
ledger_path: "ledger.json"
db_conn_str: ""
*/

type Config struct {
	TelegramToken  string        `yaml:"telegram_token"`
	AllowedUserID  int64         `yaml:"allowed_user_id"`
	MexcAPIKey     string        `yaml:"mexc_api_key"`
	MexcSecretKey  string        `yaml:"mexc_secret_key"`
	PaperMode      bool          `yaml:"paper_mode"`
	MaxOrderUSDT   float64       `yaml:"max_order_usdt"`
	Watchlist      []string      `yaml:"watchlist"`
	ScanInterval   time.Duration `yaml:"scan_interval"`
	KlineInterval  string        `yaml:"kline_interval"`
	KlineLimit     int           `yaml:"kline_limit"`
	TP1Percent     float64       `yaml:"tp1_percent"`
	TP2Percent     float64       `yaml:"tp2_percent"`
	SLPercent      float64       `yaml:"sl_percent"`
	SignalCooldown time.Duration `yaml:"signal_cooldown"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	LedgerPath     string        `yaml:"ledger_path"`
	DBConnStr      string        `yaml:"db_conn_str"`
	MorningHour    int           `yaml:"morning_hour"`
	EveningHour    int           `yaml:"evening_hour"`
	Timezone       string        `yaml:"timezone"`
	LogLevel       string        `yaml:"log_level"`
}

func Load() (Config, error) {
	paper := flag.Bool("paper", envBool("PAPER_MODE", true), "Paper mode: simulate order execution")
	maxOrder := flag.Float64("max-order-usdt", envFloat("MAX_ORDER_USDT", 300), "Max notional per order in USDT")
	watchlist := flag.String("watchlist", envStr("WATCHLIST", "BTCUSDT,ETHUSDT,SOLUSDT"), "Comma-separated watchlist symbols")
	scanInterval := flag.Duration("scan-interval", 15*time.Minute, "Scan cycle interval")
	klineInterval := flag.String("kline-interval", "1h", "Candle interval for scans")
	klineLimit := flag.Int("kline-limit", 100, "Number of candles fetched per scan")
	tp1 := flag.Float64("tp1-percent", 3.0, "First take-profit threshold in percent")
	tp2 := flag.Float64("tp2-percent", 6.0, "Second take-profit threshold in percent")
	sl := flag.Float64("sl-percent", 2.0, "Stop-loss drawdown threshold in percent")
	cooldown := flag.Duration("signal-cooldown", 2*time.Hour, "Minimum gap between repeated signal alerts")
	fetchTimeout := flag.Duration("fetch-timeout", 20*time.Second, "Timeout for exchange requests")
	ledgerPath := flag.String("ledger-path", envStr("LEDGER_PATH", "ledger.json"), "Path to the persisted position ledger")
	morningHour := flag.Int("morning-hour", 9, "Hour of the morning digest")
	eveningHour := flag.Int("evening-hour", 20, "Hour of the evening digest")
	timezone := flag.String("timezone", envStr("TZ", "Asia/Ho_Chi_Minh"), "Timezone for digest scheduling")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	configFile := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
		mergeEnvSecrets(&fileCfg)
		applyDefaults(&fileCfg)
		return fileCfg, fileCfg.Validate()
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(firstEnv("TELEGRAM_TOKEN", "TG_TOKEN")),
		AllowedUserID:  envInt64("ALLOWED_USER_ID", 0),
		MexcAPIKey:     strings.TrimSpace(os.Getenv("MEXC_API_KEY")),
		MexcSecretKey:  strings.TrimSpace(os.Getenv("MEXC_SECRET_KEY")),
		PaperMode:      *paper,
		MaxOrderUSDT:   *maxOrder,
		Watchlist:      strings.Split(*watchlist, ","),
		ScanInterval:   *scanInterval,
		KlineInterval:  *klineInterval,
		KlineLimit:     *klineLimit,
		TP1Percent:     *tp1,
		TP2Percent:     *tp2,
		SLPercent:      *sl,
		SignalCooldown: *cooldown,
		FetchTimeout:   *fetchTimeout,
		LedgerPath:     *ledgerPath,
		DBConnStr:      os.Getenv("DB_CONN_STR"),
		MorningHour:    *morningHour,
		EveningHour:    *eveningHour,
		Timezone:       *timezone,
		LogLevel:       *logLevel,
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// mergeEnvSecrets fills credentials the config file left empty from the
// environment. File values win; env keeps secrets out of the file.
func mergeEnvSecrets(cfg *Config) {
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = strings.TrimSpace(firstEnv("TELEGRAM_TOKEN", "TG_TOKEN"))
	}
	if cfg.AllowedUserID == 0 {
		cfg.AllowedUserID = envInt64("ALLOWED_USER_ID", 0)
	}
	if cfg.MexcAPIKey == "" {
		cfg.MexcAPIKey = strings.TrimSpace(os.Getenv("MEXC_API_KEY"))
	}
	if cfg.MexcSecretKey == "" {
		cfg.MexcSecretKey = strings.TrimSpace(os.Getenv("MEXC_SECRET_KEY"))
	}
	if cfg.DBConnStr == "" {
		cfg.DBConnStr = os.Getenv("DB_CONN_STR")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 15 * time.Minute
	}
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = "1h"
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = 100
	}
	if cfg.TP1Percent <= 0 {
		cfg.TP1Percent = 3.0
	}
	if cfg.TP2Percent <= 0 {
		cfg.TP2Percent = 6.0
	}
	if cfg.SLPercent <= 0 {
		cfg.SLPercent = 2.0
	}
	if cfg.SignalCooldown <= 0 {
		cfg.SignalCooldown = 2 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.MaxOrderUSDT <= 0 {
		cfg.MaxOrderUSDT = 300
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "ledger.json"
	}
	if cfg.MorningHour == 0 && cfg.EveningHour == 0 {
		cfg.MorningHour = 9
		cfg.EveningHour = 20
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Ho_Chi_Minh"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Watchlist = NormalizeWatchlist(cfg.Watchlist)
}

func (c Config) Validate() error {
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist is empty")
	}
	if c.TP2Percent <= c.TP1Percent {
		return fmt.Errorf("tp2_percent (%.2f) must exceed tp1_percent (%.2f)", c.TP2Percent, c.TP1Percent)
	}
	if c.TelegramToken != "" && !strings.Contains(c.TelegramToken, ":") {
		return fmt.Errorf("malformed telegram token")
	}
	return nil
}

// NormalizeWatchlist uppercases, trims, appends the USDT quote when missing,
// and removes duplicates while preserving order.
func NormalizeWatchlist(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if !strings.HasSuffix(u, "USDT") {
			u += "USDT"
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
