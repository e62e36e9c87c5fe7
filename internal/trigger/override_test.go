package trigger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOverrideSetAndGet(t *testing.T) {
	store := NewOverrideStore(newMockRepository())
	ctx := context.Background()

	o, err := store.Set(ctx, "dev-1", 80, 30, "night aeration", "operator-a")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !o.Enabled || o.PowerLevel != 80 {
		t.Errorf("override = enabled=%v power=%d, want enabled=true power=80", o.Enabled, o.PowerLevel)
	}
	if o.ExpiresAt == nil {
		t.Fatal("30-minute override must carry an expiry")
	}
	if want := o.StartedAt.Add(30 * time.Minute); !o.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", o.ExpiresAt, want)
	}

	if !store.IsOverridden("dev-1") {
		t.Error("IsOverridden should report true")
	}
	got, ok := store.Get("dev-1")
	if !ok || got.Operator != "operator-a" {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestOverrideNoExpiry(t *testing.T) {
	store := NewOverrideStore(newMockRepository())

	o, err := store.Set(context.Background(), "dev-1", 50, 0, "", "")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if o.ExpiresAt != nil {
		t.Errorf("duration 0 must mean no expiry, got %v", o.ExpiresAt)
	}

	// Far-future tick must not expire it
	expired := store.ExpireDue(context.Background(), time.Now().Add(24*365*time.Hour))
	if len(expired) != 0 {
		t.Errorf("expired %d overrides, want 0", len(expired))
	}
}

func TestOverrideClear(t *testing.T) {
	store := NewOverrideStore(newMockRepository())
	ctx := context.Background()

	if _, err := store.Set(ctx, "dev-1", 80, 0, "", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Clear(ctx, "dev-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.IsOverridden("dev-1") {
		t.Error("cleared override still reported")
	}

	err := store.Clear(ctx, "dev-1")
	if !errors.Is(err, ErrOverrideNotFound) {
		t.Errorf("second Clear = %v, want %v", err, ErrOverrideNotFound)
	}
}

func TestOverrideExpireDue(t *testing.T) {
	repo := newMockRepository()
	store := NewOverrideStore(repo)
	ctx := context.Background()

	if _, err := store.Set(ctx, "dev-short", 80, 10, "", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := store.Set(ctx, "dev-long", 60, 120, "", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}

	expired := store.ExpireDue(ctx, time.Now().UTC().Add(30*time.Minute))
	if len(expired) != 1 || expired[0].DeviceID != "dev-short" {
		t.Fatalf("expired = %+v, want only dev-short", expired)
	}

	if store.IsOverridden("dev-short") {
		t.Error("expired override still reported")
	}
	if !store.IsOverridden("dev-long") {
		t.Error("unexpired override was dropped")
	}
}

func TestOverrideLoad(t *testing.T) {
	repo := newMockRepository()
	ctx := context.Background()

	seed := NewOverrideStore(repo)
	if _, err := seed.Set(ctx, "dev-1", 80, 0, "maintenance", "operator-a"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	fresh := NewOverrideStore(repo)
	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fresh.IsOverridden("dev-1") {
		t.Error("override not restored after load")
	}
}
