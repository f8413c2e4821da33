package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"ghl-extractor-backend/internal/ghl"

	"go.uber.org/zap"
)

type fakeStore struct {
	due         []ghl.StoredToken
	before      time.Time
	deactivated []string
}

func (f *fakeStore) ExpiringTokens(ctx context.Context, before time.Time, limit int) ([]ghl.StoredToken, error) {
	f.before = before
	return f.due, nil
}

func (f *fakeStore) DeactivateLocation(ctx context.Context, locationID string) error {
	f.deactivated = append(f.deactivated, locationID)
	return nil
}

type fakeRefresher map[string]error

func (f fakeRefresher) RefreshAhead(ctx context.Context, t ghl.StoredToken, window time.Duration) (string, error) {
	if window <= ghl.RefreshWindow {
		return "", errors.New("scheduler must refresh ahead of the request window")
	}
	if err := f[t.LocationID]; err != nil {
		return "", err
	}
	return "fresh-" + t.LocationID, nil
}

func TestScheduler_RunOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{due: []ghl.StoredToken{
		{LocationID: "loc-ok", RefreshToken: "r1"},
		{LocationID: "loc-gone"},
		{LocationID: "loc-down", RefreshToken: "r3"},
	}}
	tokens := fakeRefresher{
		"loc-gone": ghl.ErrNoRefreshToken,
		"loc-down": errors.New("ghl: refresh token: 503"),
	}
	s := NewScheduler(store, tokens, time.Minute, zap.NewNop())
	s.now = func() time.Time { return now }

	refreshed, failed := s.RunOnce(context.Background())
	if refreshed != 1 || failed != 2 {
		t.Errorf("refreshed=%d failed=%d, want 1 and 2", refreshed, failed)
	}
	if !store.before.Equal(now.Add(Window)) {
		t.Errorf("cutoff = %v", store.before)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != "loc-gone" {
		t.Errorf("deactivated = %v, want only loc-gone", store.deactivated)
	}
}

func TestScheduler_RunDisabled(t *testing.T) {
	s := NewScheduler(&fakeStore{}, fakeRefresher{}, 0, zap.NewNop())
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
