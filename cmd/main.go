package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/pmaren/market-sentry/internal/alert"
	"github.com/pmaren/market-sentry/internal/config"
	"github.com/pmaren/market-sentry/internal/exchange"
	"github.com/pmaren/market-sentry/internal/journal"
	"github.com/pmaren/market-sentry/internal/ledger"
	"github.com/pmaren/market-sentry/internal/logger"
	"github.com/pmaren/market-sentry/internal/notifier"
	"github.com/pmaren/market-sentry/internal/orders"
	"github.com/pmaren/market-sentry/internal/scanner"
	"github.com/pmaren/market-sentry/internal/scheduler"
	"github.com/pmaren/market-sentry/internal/tg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}
	logger.Setup(cfg.LogLevel)
	log.Info().
		Strs("watchlist", cfg.Watchlist).
		Dur("scan_interval", cfg.ScanInterval).
		Bool("paper", cfg.PaperMode).
		Msg("starting market sentry")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exch := exchange.NewMEXC(cfg.MexcAPIKey, cfg.MexcSecretKey, cfg.PaperMode, cfg.FetchTimeout)
	book := ledger.Open(cfg.LedgerPath)

	var (
		jr     journal.Journaler
		events journal.Reader
	)
	if cfg.DBConnStr != "" {
		pg, err := journal.NewPostgres(cfg.DBConnStr)
		if err != nil {
			log.Fatal().Err(err).Msg("journal database unavailable")
		}
		defer pg.Close()
		jr, events = pg, pg
	} else {
		mem := journal.NewMemory()
		jr, events = mem, mem
		log.Info().Msg("no DB_CONN_STR, journaling in memory")
	}

	var (
		notif notifier.Notifier = notifier.Log{}
		api   *tgbotapi.BotAPI
	)
	if cfg.TelegramToken != "" {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram connection failed")
		}
		if cfg.AllowedUserID != 0 {
			notif = notifier.NewTelegramNotifier(api, cfg.AllowedUserID)
		} else {
			log.Warn().Msg("no allowed_user_id, alerts go to the log only")
		}
	} else {
		log.Warn().Msg("no telegram token, alerts go to the log only")
	}

	dedup := alert.NewDeduper(cfg.SignalCooldown)
	scan := scanner.New(cfg, exch, book, dedup, notif, jr)
	planner := orders.NewPlanner(exch, cfg.MaxOrderUSDT, jr)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("falling back to UTC")
		loc = time.UTC
	}

	go scheduler.DailyAt(ctx, "morning digest", cfg.MorningHour, 0, loc, scan.Digest)
	go scheduler.DailyAt(ctx, "evening digest", cfg.EveningHour, 0, loc, scan.Digest)
	go scan.Run(ctx)

	if api != nil {
		bot := tg.NewBot(api, cfg.AllowedUserID, exch, book, scan, planner, events)
		go bot.Run(ctx)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	// Give in-flight notifications a moment to drain.
	time.Sleep(500 * time.Millisecond)
}
