package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// AsynqClient implements Client on asynq with Redis as the backing store.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client from a Redis URL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

var _ Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t Task) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// AsynqServer implements Server on asynq.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewAsynqServer constructs a worker server from a Redis URL.
func NewAsynqServer(redisURL string) (*AsynqServer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

var _ Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the workers and blocks until the context is canceled, then
// shuts down gracefully.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// AsynqScheduler periodically enqueues tasks on a cron spec.
type AsynqScheduler struct {
	scheduler *asynq.Scheduler
}

// NewAsynqScheduler constructs a cron scheduler from a Redis URL.
func NewAsynqScheduler(redisURL string) (*AsynqScheduler, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqScheduler{scheduler: asynq.NewScheduler(opt, nil)}, nil
}

// RegisterCron enqueues the task on the given cron spec.
func (s *AsynqScheduler) RegisterCron(spec string, t Task) error {
	_, err := s.scheduler.Register(spec, asynq.NewTask(t.Type, t.Payload))
	return err
}

// Run starts the scheduler and blocks until the context is canceled.
func (s *AsynqScheduler) Run(ctx context.Context) error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.scheduler.Shutdown()
	return nil
}
