package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultFlushWindow = 15 * time.Second

// FlushPayload is the best-effort document state sent during teardown.
type FlushPayload struct {
	ID      string
	Title   string
	Author  string
	Content string
}

// Flusher delivers exit-time saves on detached goroutines so they outlive
// the editor session that requested them. Failures are logged, never
// surfaced; the local cache copy is the durability backstop.
type Flusher struct {
	client Client
	logger *zap.Logger
	window time.Duration
	wg     sync.WaitGroup
}

// NewFlusher constructs a Flusher around a document store client.
func NewFlusher(client Client, logger *zap.Logger) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{client: client, logger: logger, window: defaultFlushWindow}
}

// Send schedules a fire-and-forget forced update. It returns immediately.
func (f *Flusher) Send(payload FlushPayload) {
	if payload.ID == "" || payload.Content == "" {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.window)
		defer cancel()

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 200 * time.Millisecond
		policy.MaxElapsedTime = f.window

		operation := func() error {
			_, err := f.client.Update(ctx, UpdateRequest{
				ID:      payload.ID,
				Title:   payload.Title,
				Author:  payload.Author,
				Content: payload.Content,
				Force:   true,
			})
			return err
		}
		if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
			f.logger.Warn("exit flush failed",
				zap.String("document_id", payload.ID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until all in-flight flushes finish. Used by tests and by
// process shutdown paths that can afford to linger.
func (f *Flusher) Wait() {
	f.wg.Wait()
}
