// Package framework holds the process plumbing shared by the commands:
// runnables, their runner and message contracts.
package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message defines the abstract message exchanged with remote peers.
type Message interface {
	// NewMessage creates an empty message.
	NewMessage() Message
}
