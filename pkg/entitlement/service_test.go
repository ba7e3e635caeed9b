package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scriptingcat/scriptingcat/pkg/catalog"
)

// fakeStorage is a map-backed Storage for Service tests. Backend packages
// carry their own conformance tests.
type fakeStorage struct {
	records  map[string]Record
	prefs    map[string]Preferences
	history  map[string][]HistoryEntry
	loadErr  error
	saveErr  error
	saveHits int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		records: make(map[string]Record),
		prefs:   make(map[string]Preferences),
		history: make(map[string][]HistoryEntry),
	}
}

func (f *fakeStorage) LoadRecord(ctx context.Context, sessionID string) (*Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	rec, ok := f.records[sessionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

func (f *fakeStorage) SaveRecord(ctx context.Context, sessionID string, rec *Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveHits++
	f.records[sessionID] = *rec
	return nil
}

func (f *fakeStorage) LoadPreferences(ctx context.Context, sessionID string) (*Preferences, error) {
	p, ok := f.prefs[sessionID]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (f *fakeStorage) SavePreferences(ctx context.Context, sessionID string, prefs *Preferences) error {
	f.prefs[sessionID] = *prefs
	return nil
}

func (f *fakeStorage) ListHistory(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	return f.history[sessionID], nil
}

func (f *fakeStorage) AppendHistory(ctx context.Context, sessionID string, entry *HistoryEntry) error {
	f.history[sessionID] = append([]HistoryEntry{*entry}, f.history[sessionID]...)
	return nil
}

func (f *fakeStorage) SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error {
	for i := range f.history[sessionID] {
		if f.history[sessionID][i].ID == entryID {
			f.history[sessionID][i].Favorite = favorite
			return nil
		}
	}
	return ErrHistoryNotFound
}

func (f *fakeStorage) DeleteHistory(ctx context.Context, sessionID, entryID string) error {
	entries := f.history[sessionID]
	for i := range entries {
		if entries[i].ID == entryID {
			f.history[sessionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrHistoryNotFound
}

func newTestService(t *testing.T) (*Service, *fakeStorage) {
	t.Helper()
	store := newFakeStorage()
	svc, err := NewService(store, newTestEvaluator(), ServiceConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, newTestEvaluator(), ServiceConfig{}); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("nil storage error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := NewService(newFakeStorage(), nil, ServiceConfig{}); err == nil {
		t.Error("expected error for nil evaluator")
	}
}

func TestCheckCreatesDefaultRecord(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Check(ctx, "s1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rec.Tier != catalog.TierFree || rec.DailyUsage != 0 {
		t.Errorf("first-use record = %+v, want fresh free record", rec)
	}

	// The default record must be persisted on first use.
	saved, ok := store.records["s1"]
	if !ok {
		t.Fatal("default record was not persisted")
	}
	if saved != *rec {
		t.Errorf("persisted record %+v differs from returned %+v", saved, *rec)
	}
}

func TestCheckDeniesAtLimit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("free", 5)

	rec, err := svc.Check(ctx, "s1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Check error = %v, want ErrQuotaExceeded", err)
	}
	if rec == nil || rec.DailyUsage != 5 {
		t.Errorf("denied Check should still return the record, got %+v", rec)
	}
}

func TestCheckRollsOverStaleRecord(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	stale := activeRecord("free", 5)
	stale.LastResetDate = "2025-06-14"
	store.records["s1"] = stale

	rec, err := svc.Check(ctx, "s1")
	if err != nil {
		t.Fatalf("Check after rollover: %v", err)
	}
	if rec.DailyUsage != 0 || rec.LastResetDate != "2025-06-15" {
		t.Errorf("rolled record = %+v", rec)
	}
	// The rollover must be persisted, not just returned.
	if saved := store.records["s1"]; saved.DailyUsage != 0 {
		t.Errorf("persisted usage = %d, want 0", saved.DailyUsage)
	}
}

func TestCheckDoesNotConsumeQuota(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("free", 2)

	for i := 0; i < 3; i++ {
		if _, err := svc.Check(ctx, "s1"); err != nil {
			t.Fatalf("Check #%d: %v", i, err)
		}
	}
	if got := store.records["s1"].DailyUsage; got != 2 {
		t.Errorf("usage after repeated checks = %d, want 2", got)
	}
}

func TestCommitIncrementsExactlyOne(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("free", 2)

	rec, err := svc.Commit(ctx, "s1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.DailyUsage != 3 {
		t.Errorf("DailyUsage = %d, want 3", rec.DailyUsage)
	}
	if store.records["s1"].DailyUsage != 3 {
		t.Errorf("persisted usage = %d, want 3", store.records["s1"].DailyUsage)
	}
}

// Commit never re-verifies entitlement; the last unit of the day can be
// committed even though a fresh Check would now deny.
func TestCommitAfterGateIsUnconditional(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("free", 4)

	if _, err := svc.Check(ctx, "s1"); err != nil {
		t.Fatalf("Check: %v", err)
	}
	rec, err := svc.Commit(ctx, "s1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.DailyUsage != 5 {
		t.Errorf("DailyUsage = %d, want 5", rec.DailyUsage)
	}
	if _, err := svc.Check(ctx, "s1"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("next Check error = %v, want ErrQuotaExceeded", err)
	}
}

func TestUpgrade(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("free", 5)

	rec, err := svc.Upgrade(ctx, "s1", catalog.TierPro, 30, "sub_abc")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if rec.Tier != catalog.TierPro || rec.Status != StatusActive {
		t.Errorf("upgraded record = %+v", rec)
	}
	if rec.SubscriptionID != "sub_abc" {
		t.Errorf("SubscriptionID = %q, want sub_abc", rec.SubscriptionID)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(testNow.Add(30*24*time.Hour)) {
		t.Errorf("ExpiresAt = %v", rec.ExpiresAt)
	}

	if _, err := svc.Check(ctx, "s1"); err != nil {
		t.Errorf("Check after upgrade: %v", err)
	}
}

func TestUpgradeUnknownSessionBootstraps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Upgrade(ctx, "never-seen", catalog.TierExpert, 30, "sub_x")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if rec.Tier != catalog.TierExpert {
		t.Errorf("Tier = %q, want expert", rec.Tier)
	}
}

func TestDowngrade(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	exp := testNow.Add(24 * time.Hour)
	store.records["s1"] = Record{
		Tier:           catalog.TierPro,
		DailyUsage:     7,
		LastResetDate:  "2025-06-15",
		Status:         StatusActive,
		ExpiresAt:      &exp,
		SubscriptionID: "sub_abc",
	}

	rec, err := svc.Downgrade(ctx, "s1")
	if err != nil {
		t.Fatalf("Downgrade: %v", err)
	}
	if rec.Tier != catalog.TierFree {
		t.Errorf("Tier = %q, want free", rec.Tier)
	}
	if rec.ExpiresAt != nil || rec.SubscriptionID != "" {
		t.Errorf("expiry and subscription should be cleared, got %+v", rec)
	}
	if rec.DailyUsage != 7 {
		t.Errorf("DailyUsage = %d, want 7 (kept across downgrade)", rec.DailyUsage)
	}
}

func TestCancelKeepsTier(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("pro", 3)

	rec, err := svc.Cancel(ctx, "s1")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rec.Status != StatusCancelled || rec.Tier != catalog.TierPro {
		t.Errorf("cancelled record = %+v", rec)
	}
	if _, err := svc.Check(ctx, "s1"); !errors.Is(err, ErrSubscriptionInactive) {
		t.Errorf("Check error = %v, want ErrSubscriptionInactive", err)
	}
}

func TestQuotaEndpointShape(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.records["s1"] = activeRecord("pro", 12)

	q, err := svc.Quota(ctx, "s1")
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if q.Tier != catalog.TierPro || q.Used != 12 || q.Limit != 50 || q.Remaining != 38 {
		t.Errorf("Quota = %+v", q)
	}
}

func TestPreferencesDefaultToEnglish(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	prefs, err := svc.Preferences(ctx, "s1")
	if err != nil {
		t.Fatalf("Preferences: %v", err)
	}
	if prefs.Language != "en" {
		t.Errorf("Language = %q, want en", prefs.Language)
	}

	if err := svc.SetPreferences(ctx, "s1", &Preferences{Language: "zh"}); err != nil {
		t.Fatalf("SetPreferences: %v", err)
	}
	prefs, err = svc.Preferences(ctx, "s1")
	if err != nil {
		t.Fatalf("Preferences reload: %v", err)
	}
	if prefs.Language != "zh" {
		t.Errorf("Language = %q, want zh", prefs.Language)
	}
}

func TestHistoryLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := HistoryEntry{ID: "h1", Platform: "youtube", URL: "https://youtu.be/x"}
	second := HistoryEntry{ID: "h2", Platform: "tiktok", URL: "https://tiktok.com/@a/video/1"}
	if err := svc.AppendHistory(ctx, "s1", &first); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := svc.AppendHistory(ctx, "s1", &second); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	entries, err := svc.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "h2" {
		t.Fatalf("History = %+v, want newest first", entries)
	}

	if err := svc.SetFavorite(ctx, "s1", "h1", true); err != nil {
		t.Fatalf("SetFavorite: %v", err)
	}
	entries, _ = svc.History(ctx, "s1")
	if !entries[1].Favorite {
		t.Error("h1 should be marked favorite")
	}

	if err := svc.DeleteHistory(ctx, "s1", "h2"); err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	entries, _ = svc.History(ctx, "s1")
	if len(entries) != 1 || entries[0].ID != "h1" {
		t.Errorf("History after delete = %+v", entries)
	}

	if err := svc.DeleteHistory(ctx, "s1", "missing"); !errors.Is(err, ErrHistoryNotFound) {
		t.Errorf("DeleteHistory unknown id = %v, want ErrHistoryNotFound", err)
	}
}

func TestStorageErrorsPropagate(t *testing.T) {
	store := newFakeStorage()
	store.loadErr = errors.New("backend down")
	svc, err := NewService(store, newTestEvaluator(), ServiceConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Check(context.Background(), "s1"); err == nil {
		t.Error("expected storage error to propagate from Check")
	}
	if _, err := svc.Commit(context.Background(), "s1"); err == nil {
		t.Error("expected storage error to propagate from Commit")
	}
}
