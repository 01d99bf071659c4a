// Package notifier
package notifier

import "github.com/rs/zerolog/log"

// Notifier interface for delivering alerts to the user.
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
}

// Log is the fallback notifier when no chat transport is configured: alerts
// land in the process log instead of being dropped.
type Log struct{}

func (Log) Send(msg string) error {
	log.Info().Str("alert", msg).Msg("notification")
	return nil
}

func (l Log) SendWithRetry(msg string) error { return l.Send(msg) }
