// Package tg runs the interactive Telegram side of the assistant: ledger
// commands, on-demand advice, and the approve/cancel flow for trade plans.
package tg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/pmaren/market-sentry/internal/command"
	"github.com/pmaren/market-sentry/internal/exchange"
	"github.com/pmaren/market-sentry/internal/journal"
	"github.com/pmaren/market-sentry/internal/ledger"
	"github.com/pmaren/market-sentry/internal/orders"
	"github.com/pmaren/market-sentry/internal/scanner"
)

const helpText = `Commands:
/market — price digest and headlines
/news — latest headlines
/balance — exchange balances
/watch — show watchlist, "/watch set SOL BTC" to replace it
/hold add SYM QTY [PRICE] — record a buy
/hold rm SYM QTY — record a sell
/hold report — valued position report
/advice SYM — one-off signal and threshold read
/journal — alerts and orders from the last 24h
/signal BUY SYM USDT @MKT|@LIM=p TP=p SL=p — propose a trade`

const requestTimeout = 20 * time.Second

type Bot struct {
	api       *tgbotapi.BotAPI
	allowedID int64

	exch    exchange.Exchange
	book    *ledger.Book
	scan    *scanner.Scanner
	planner *orders.Planner
	jr      journal.Reader

	mu      sync.Mutex
	nextID  int
	pending map[string]orders.Intent
}

func NewBot(api *tgbotapi.BotAPI, allowedID int64, exch exchange.Exchange, book *ledger.Book, scan *scanner.Scanner, planner *orders.Planner, jr journal.Reader) *Bot {
	return &Bot{
		api:       api,
		allowedID: allowedID,
		exch:      exch,
		book:      book,
		scan:      scan,
		planner:   planner,
		jr:        jr,
		pending:   make(map[string]orders.Intent),
	}
}

// Run long-polls updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	log.Info().Str("username", b.api.Self.UserName).Msg("telegram bot polling")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case up := <-updates:
			switch {
			case up.CallbackQuery != nil:
				b.handleCallback(ctx, up.CallbackQuery)
			case up.Message != nil:
				b.handleMessage(ctx, up.Message)
			}
		}
	}
}

func (b *Bot) allowed(userID int64) bool {
	return b.allowedID == 0 || userID == b.allowedID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !b.allowed(msg.From.ID) {
		log.Warn().Int64("user", userID(msg)).Msg("message from unauthorized user dropped")
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chatID := msg.Chat.ID

	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		b.reply(chatID, helpText)
	case strings.HasPrefix(text, "/news"):
		b.reply(chatID, b.newsText(rctx))
	case strings.HasPrefix(text, "/market"):
		b.reply(chatID, b.scan.DigestText(rctx))
	case strings.HasPrefix(text, "/balance"):
		b.reply(chatID, b.balanceText(rctx))
	case strings.HasPrefix(text, "/watch"):
		b.reply(chatID, b.watchText(text))
	case strings.HasPrefix(text, "/journal"):
		b.reply(chatID, b.journalText(rctx))
	default:
		b.dispatch(rctx, chatID, text)
	}
}

func (b *Bot) dispatch(ctx context.Context, chatID int64, text string) {
	cmd, err := command.Parse(text)
	if errors.Is(err, command.ErrUnknownCommand) {
		b.reply(chatID, "Unknown command, try /help")
		return
	}
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	switch c := cmd.(type) {
	case command.HoldAdd:
		b.holdAdd(ctx, chatID, c)
	case command.HoldRemove:
		b.holdRemove(chatID, c)
	case command.HoldReport:
		b.reply(chatID, b.reportText(ctx))
	case command.Advice:
		advice, err := b.scan.Advise(ctx, command.Pair(c.Symbol))
		if err != nil {
			b.reply(chatID, "Could not evaluate "+c.Symbol+": "+err.Error())
			return
		}
		b.reply(chatID, advice)
	case command.Signal:
		b.proposeSignal(chatID, c)
	}
}

func (b *Bot) holdAdd(ctx context.Context, chatID int64, c command.HoldAdd) {
	symbol := command.Pair(c.Symbol)
	price := 0.0
	if c.Price != nil {
		price = *c.Price
	} else {
		p, err := b.exch.FetchPrice(ctx, symbol)
		if err != nil {
			b.reply(chatID, "Price lookup for "+symbol+" failed, pass the price explicitly")
			return
		}
		price = p
	}
	pos, err := b.book.Add(symbol, c.Qty, price)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("Recorded. %s position: %.6f @ %.4f", symbol, pos.Quantity, pos.AvgCost))
}

func (b *Bot) holdRemove(chatID int64, c command.HoldRemove) {
	symbol := command.Pair(c.Symbol)
	removed, after, closed, err := b.book.Reduce(symbol, c.Qty)
	switch {
	case errors.Is(err, ledger.ErrPositionNotFound):
		b.reply(chatID, "No open position in "+symbol)
	case err != nil:
		b.reply(chatID, err.Error())
	case closed:
		b.reply(chatID, fmt.Sprintf("Removed %.6f %s, position closed", removed, symbol))
	default:
		b.reply(chatID, fmt.Sprintf("Removed %.6f %s, remaining %.6f @ %.4f", removed, symbol, after.Quantity, after.AvgCost))
	}
}

func (b *Bot) reportText(ctx context.Context) string {
	lines := b.book.Report(func(symbol string) (float64, error) {
		return b.exch.FetchPrice(ctx, symbol)
	})
	if len(lines) == 0 {
		return "No open positions"
	}
	var sb strings.Builder
	sb.WriteString("📒 <b>Positions</b>\n")
	for _, l := range lines {
		if l.Price == nil {
			fmt.Fprintf(&sb, "%s: %.6f @ %.4f — price unavailable\n", l.Symbol, l.Quantity, l.AvgCost)
			continue
		}
		fmt.Fprintf(&sb, "%s: %.6f @ %.4f → %.4f (%+.1f%%)\n", l.Symbol, l.Quantity, l.AvgCost, *l.Price, l.PnL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) newsText(ctx context.Context) string {
	headlines := b.scan.Headlines(ctx, 8)
	if len(headlines) == 0 {
		return "No headlines right now"
	}
	var sb strings.Builder
	sb.WriteString("📰 <b>News</b>\n")
	for _, h := range headlines {
		fmt.Fprintf(&sb, "• %s\n", h)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) balanceText(ctx context.Context) string {
	balances, err := b.exch.FetchBalances(ctx)
	if err != nil {
		return "Balance fetch failed: " + err.Error()
	}
	assets := make([]string, 0, len(balances))
	for asset, amount := range balances {
		if amount > 0 {
			assets = append(assets, asset)
		}
	}
	if len(assets) == 0 {
		return "No balances"
	}
	sort.Strings(assets)
	var sb strings.Builder
	sb.WriteString("💰 <b>Balances</b>\n")
	for _, asset := range assets {
		fmt.Fprintf(&sb, "%s: <code>%.8f</code>\n", asset, balances[asset])
	}
	return strings.TrimRight(sb.String(), "\n")
}

const journalWindow = 24 * time.Hour

func (b *Bot) journalText(ctx context.Context) string {
	end := time.Now().UTC()
	start := end.Add(-journalWindow)

	var events []journal.Event
	for _, eventType := range []string{"alert", "order"} {
		batch, err := b.jr.GetEvents(ctx, eventType, start, end)
		if err != nil {
			return "Journal query failed: " + err.Error()
		}
		events = append(events, batch...)
	}
	if len(events) == 0 {
		return "Nothing journaled in the last 24h"
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })
	if len(events) > 20 {
		events = events[len(events)-20:]
	}

	var sb strings.Builder
	sb.WriteString("🗒 <b>Last 24h</b>\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "%s [%s] %s\n", e.Time.Format("02 Jan 15:04"), e.Type, e.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) watchText(text string) string {
	fields := strings.Fields(text)
	if len(fields) >= 3 && strings.EqualFold(fields[1], "set") {
		updated := b.scan.Reconfigure(fields[2:])
		return "Watchlist: " + strings.Join(updated, ", ")
	}
	return "Watching: " + strings.Join(b.scan.Watchlist(), ", ")
}

func (b *Bot) proposeSignal(chatID int64, c command.Signal) {
	intent := orders.Intent{
		Side:         c.Side,
		Symbol:       command.Pair(c.Symbol),
		NotionalUSDT: c.NotionalUSDT,
		Kind:         c.Kind,
		LimitPrice:   c.LimitPrice,
		TakeProfit:   c.TakeProfit,
		StopLoss:     c.StopLoss,
		Reason:       c.Reason,
	}

	b.mu.Lock()
	b.nextID++
	id := strconv.Itoa(b.nextID)
	b.pending[id] = intent
	b.mu.Unlock()

	entry := "market"
	if intent.Kind == orders.KindLimit {
		entry = fmt.Sprintf("limit %.4f", intent.LimitPrice)
	}
	summary := fmt.Sprintf("Confirm %s <b>%s</b> for %.2f USDT (%s)\nTP %.4f | SL %.4f",
		intent.Side, intent.Symbol, intent.NotionalUSDT, entry, intent.TakeProfit, intent.StopLoss)
	if intent.Reason != "" {
		summary += "\n💬 " + intent.Reason
	}

	msg := tgbotapi.NewMessage(chatID, summary)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Execute", "ok:"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "no:"+id),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("signal confirmation send failed")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || !b.allowed(cb.From.ID) {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn().Err(err).Msg("callback ack failed")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	verb, id, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	b.mu.Lock()
	intent, found := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !found {
		b.reply(chatID, "That plan has expired")
		return
	}
	if verb != "ok" {
		b.reply(chatID, "Canceled")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	exec, err := b.planner.Execute(rctx, intent)
	if err != nil {
		b.reply(chatID, "Order failed: "+err.Error())
		return
	}
	b.reply(chatID, executionText(intent, exec))
}

func executionText(intent orders.Intent, exec orders.Execution) string {
	var sb strings.Builder
	mode := ""
	if exec.Entry.Paper {
		mode = " (paper)"
	}
	fmt.Fprintf(&sb, "✅ %s %s%s\nEntry %s: qty %.6f, status %s\n",
		intent.Side, intent.Symbol, mode, exec.Entry.OrderID, exec.Quantity, exec.Entry.Status)
	if exec.TakeProfit != nil {
		fmt.Fprintf(&sb, "TP order %s @ %.4f\n", exec.TakeProfit.OrderID, intent.TakeProfit)
	}
	if exec.TakeProfitErr != nil {
		fmt.Fprintf(&sb, "⚠️ TP leg failed: %v\n", exec.TakeProfitErr)
	}
	if exec.StopLoss != nil {
		fmt.Fprintf(&sb, "SL order %s @ %.4f\n", exec.StopLoss.OrderID, intent.StopLoss)
	}
	if exec.StopLossErr != nil {
		fmt.Fprintf(&sb, "⚠️ SL leg failed: %v\n", exec.StopLossErr)
	}
	if exec.PartialFailure() {
		sb.WriteString("Check the exchange: the entry stands without a full bracket")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("telegram reply failed")
	}
}

func userID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
