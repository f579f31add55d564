package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryServiceGrantsFreeLock(t *testing.T) {
	service := NewMemoryService(MemoryServiceConfig{})
	claim := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop", DisplayName: "Ada"}

	status, err := service.Acquire(context.Background(), claim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.HeldBySelf(claim) {
		t.Fatalf("expected lock to be granted, got %#v", status)
	}
}

func TestMemoryServiceReportsOtherDevice(t *testing.T) {
	service := NewMemoryService(MemoryServiceConfig{})
	laptop := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop", DisplayName: "Ada"}
	tablet := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "tablet", DisplayName: "Ada"}

	if _, err := service.Acquire(context.Background(), laptop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := service.Acquire(context.Background(), tablet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.HeldByOtherDevice(tablet) {
		t.Fatalf("expected lock held by other device, got %#v", status)
	}
	if status.HeldByCollaborator(tablet) {
		t.Fatalf("same user should not register as collaborator")
	}
}

func TestMemoryServiceReportsCollaborator(t *testing.T) {
	service := NewMemoryService(MemoryServiceConfig{})
	owner := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop", DisplayName: "Ada"}
	guest := Claim{DocumentID: "doc-1", UserID: "user-2", DeviceID: "phone", DisplayName: "Grace"}

	if _, err := service.Acquire(context.Background(), owner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := service.Acquire(context.Background(), guest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.HeldByCollaborator(guest) {
		t.Fatalf("expected collaborator hold, got %#v", status)
	}
	if status.HolderName != "Ada" {
		t.Fatalf("expected holder name to surface, got %q", status.HolderName)
	}
}

func TestMemoryServiceExpiresWithoutHeartbeat(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	service := NewMemoryService(MemoryServiceConfig{TTL: time.Minute, Clock: clock})
	laptop := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop"}
	tablet := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "tablet"}

	if _, err := service.Acquire(context.Background(), laptop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	status, err := service.Acquire(context.Background(), tablet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.HeldBySelf(tablet) {
		t.Fatalf("expected expired lock to be stolen, got %#v", status)
	}
}

func TestMemoryServiceHeartbeatExtendsHold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	service := NewMemoryService(MemoryServiceConfig{TTL: time.Minute, Clock: clock})
	laptop := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop"}

	if _, err := service.Acquire(context.Background(), laptop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(45 * time.Second)
	if err := service.Heartbeat(context.Background(), laptop); err != nil {
		t.Fatalf("unexpected heartbeat error: %v", err)
	}

	now = now.Add(45 * time.Second)
	status, err := service.Status(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected status error: %v", err)
	}
	if !status.Held {
		t.Fatalf("heartbeat should have kept the lock warm")
	}
}

func TestMemoryServiceReleaseIgnoresNonHolder(t *testing.T) {
	service := NewMemoryService(MemoryServiceConfig{})
	laptop := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "laptop"}
	tablet := Claim{DocumentID: "doc-1", UserID: "user-1", DeviceID: "tablet"}

	if _, err := service.Acquire(context.Background(), laptop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.Release(context.Background(), tablet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := service.Status(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected status error: %v", err)
	}
	if !status.Held {
		t.Fatalf("release by non-holder should be a no-op")
	}
}
