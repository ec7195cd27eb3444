// Package transport defines the delivery contract between the notifier and
// the host messaging platform.
package transport

import "context"

// Deliverer is the injected delivery capability. Group ids are the opaque
// strings used throughout the persisted state; adapters map them onto
// platform addresses (Telegram: chat ids).
type Deliverer interface {
	// SendBatch delivers a group's messages as one batch.
	SendBatch(ctx context.Context, groupID string, messages []string) error
	// SendSingle delivers one message; used when batch delivery failed.
	SendSingle(ctx context.Context, groupID string, message string) error
}
