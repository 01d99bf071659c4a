// Package command parses user-issued text into typed commands. Parsing
// happens once, here, at the boundary; the rest of the system only sees the
// tagged variants.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

type Command interface{ isCommand() }

// HoldAdd records a buy into the position ledger. Price is nil when the
// user omitted it and the current market price should be used.
type HoldAdd struct {
	Symbol string
	Qty    float64
	Price  *float64
}

type HoldRemove struct {
	Symbol string
	Qty    float64
}

type HoldReport struct{}

type Advice struct {
	Symbol string
}

// Signal is an approved-pending trade plan:
// signal BUY SOL 25 @MKT TP=212 SL=188, optionally followed by "R: reason"
// on the next line.
type Signal struct {
	Side         string
	Symbol       string
	NotionalUSDT float64
	Kind         string // "MARKET" or "LIMIT"
	LimitPrice   float64
	TakeProfit   float64
	StopLoss     float64
	Reason       string
}

func (HoldAdd) isCommand()    {}
func (HoldRemove) isCommand() {}
func (HoldReport) isCommand() {}
func (Advice) isCommand()     {}
func (Signal) isCommand()     {}

var signalRe = regexp.MustCompile(
	`(?is)^/?signal\s+(BUY|SELL)\s+([A-Z0-9]{2,10})\s+(\d+(?:\.\d+)?)\s+@(?:(MKT)|LIM=(\d+(?:\.\d+)?))\s+TP=(\d+(?:\.\d+)?)\s+SL=(\d+(?:\.\d+)?)\s*(?:\nR:\s*(.+))?$`)

// Parse turns one message into a Command. The leading slash is optional.
func Parse(text string) (Command, error) {
	text = strings.TrimSpace(text)
	head := strings.ToLower(firstField(text))
	head = strings.TrimPrefix(head, "/")

	switch head {
	case "hold":
		return parseHold(text)
	case "advice":
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: advice <symbol>")
		}
		return Advice{Symbol: Pair(fields[1])}, nil
	case "signal":
		return parseSignal(text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, head)
	}
}

func parseHold(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, holdUsage()
	}
	switch strings.ToLower(fields[1]) {
	case "report":
		return HoldReport{}, nil
	case "add":
		// hold add <symbol> <qty> [@ <price>]
		rest := fields[2:]
		if len(rest) < 2 {
			return nil, holdUsage()
		}
		qty, err := strconv.ParseFloat(rest[1], 64)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("bad quantity %q", rest[1])
		}
		cmd := HoldAdd{Symbol: Pair(rest[0]), Qty: qty}
		if len(rest) > 2 {
			raw := strings.TrimPrefix(strings.Join(rest[2:], ""), "@")
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil || price < 0 {
				return nil, fmt.Errorf("bad price %q", raw)
			}
			cmd.Price = &price
		}
		return cmd, nil
	case "rm":
		rest := fields[2:]
		if len(rest) != 2 {
			return nil, holdUsage()
		}
		qty, err := strconv.ParseFloat(rest[1], 64)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("bad quantity %q", rest[1])
		}
		return HoldRemove{Symbol: Pair(rest[0]), Qty: qty}, nil
	default:
		return nil, holdUsage()
	}
}

func parseSignal(text string) (Command, error) {
	m := signalRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("usage: signal BUY SOL 25 @MKT TP=212 SL=188 (or @LIM=<price>), optional second line R: <reason>")
	}
	notional, _ := strconv.ParseFloat(m[3], 64)
	tp, _ := strconv.ParseFloat(m[6], 64)
	sl, _ := strconv.ParseFloat(m[7], 64)

	cmd := Signal{
		Side:         strings.ToUpper(m[1]),
		Symbol:       Pair(m[2]),
		NotionalUSDT: notional,
		Kind:         "MARKET",
		TakeProfit:   tp,
		StopLoss:     sl,
		Reason:       strings.TrimSpace(m[8]),
	}
	if m[4] == "" {
		cmd.Kind = "LIMIT"
		cmd.LimitPrice, _ = strconv.ParseFloat(m[5], 64)
	}
	return cmd, nil
}

// Pair normalizes a base asset to its USDT pair: "sol" -> "SOLUSDT".
func Pair(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if !strings.HasSuffix(sym, "USDT") {
		sym += "USDT"
	}
	return sym
}

func firstField(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func holdUsage() error {
	return fmt.Errorf("usage: hold add <symbol> <qty> [@ <price>] | hold rm <symbol> <qty> | hold report")
}
