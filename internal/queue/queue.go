// Package queue is a thin port over the background task backend so the
// engine's handlers stay free of broker specifics.
package queue

import "context"

// Task is a background job message with a type and opaque payload bytes.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error signals retry per the backend's
// policy, so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task) (id string, err error)
	Close() error
}

// Server runs background workers that handle tasks. Run blocks until the
// context is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}
