// Package notifier publishes trade lifecycle events from forward-test
// deployments to external channels.
package notifier

import (
	"time"

	"github.com/quantblocks/quantblocks/internal/ledger"
)

// Event types published by the forward driver.
const (
	EventTradeOpened = "trade-opened"
	EventTradeClosed = "trade-closed"
)

// Event is one trade lifecycle notification.
type Event struct {
	Type         string       `json:"type"`
	DeploymentID string       `json:"deploymentId"`
	Strategy     string       `json:"strategy"`
	Symbol       string       `json:"symbol"`
	Trade        ledger.Trade `json:"trade"`
	At           time.Time    `json:"at"`
}

// Notifier delivers trade events to one channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier.
	Name() string

	// Send delivers a single event.
	Send(event Event) error
}
