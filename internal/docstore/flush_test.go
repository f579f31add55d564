package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingClient struct {
	mu      sync.Mutex
	updates []UpdateRequest
	failN   int
}

func (c *recordingClient) Create(ctx context.Context, req CreateRequest) (Record, error) {
	return Record{}, errors.New("unexpected create")
}

func (c *recordingClient) Get(ctx context.Context, id string) (Record, error) {
	return Record{}, errors.New("unexpected get")
}

func (c *recordingClient) Update(ctx context.Context, req UpdateRequest) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failN > 0 {
		c.failN--
		return Record{}, errors.New("store unavailable")
	}
	c.updates = append(c.updates, req)
	return Record{ID: req.ID, Version: req.Version + 1}, nil
}

func (c *recordingClient) List(ctx context.Context) ([]Record, error) {
	return nil, errors.New("unexpected list")
}

func (c *recordingClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func TestFlusherDeliversForcedUpdate(t *testing.T) {
	client := &recordingClient{}
	flusher := NewFlusher(client, nil)

	flusher.Send(FlushPayload{ID: "doc-1", Title: "Pilot", Content: "FADE IN:"})
	flusher.Wait()

	if client.updateCount() != 1 {
		t.Fatalf("expected exactly one update, got %d", client.updateCount())
	}
	if !client.updates[0].Force {
		t.Fatalf("exit flush must use the forced overwrite path")
	}
}

func TestFlusherRetriesTransientFailures(t *testing.T) {
	client := &recordingClient{failN: 2}
	flusher := NewFlusher(client, nil)

	flusher.Send(FlushPayload{ID: "doc-1", Content: "FADE IN:"})
	flusher.Wait()

	if client.updateCount() != 1 {
		t.Fatalf("expected update to succeed after retries, got %d", client.updateCount())
	}
}

func TestFlusherSkipsEmptyPayloads(t *testing.T) {
	client := &recordingClient{}
	flusher := NewFlusher(client, nil)

	flusher.Send(FlushPayload{ID: "", Content: "FADE IN:"})
	flusher.Send(FlushPayload{ID: "doc-1", Content: ""})
	flusher.Wait()

	if client.updateCount() != 0 {
		t.Fatalf("expected no updates, got %d", client.updateCount())
	}
}
