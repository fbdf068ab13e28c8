package profile

import (
	"testing"

	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	"github.com/hayasepd/yorutomo/backend/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open err: %v", err)
	}
	return NewStore(kv)
}

func sampleProfile() profile.UserProfile {
	return profile.UserProfile{
		ID:                   "user-1",
		Nickname:             "はな",
		Gender:               "female",
		Age:                  "twenties",
		Interests:            []string{"reading"},
		IsOnboardingComplete: true,
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	if _, ok := store.Get(); ok {
		t.Fatal("expected no profile before save")
	}

	if err := store.Save(sampleProfile()); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	got, ok := store.Get()
	if !ok {
		t.Fatal("expected profile after save")
	}
	if got.Nickname != "はな" || got.Age != "twenties" {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestUpdateWithoutProfile(t *testing.T) {
	store := newTestStore(t)

	nickname := "みき"
	if _, err := store.Update(profile.Update{Nickname: &nickname}); err != ErrNoProfile {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(sampleProfile()); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	occupation := "engineer"
	interests := []string{"music", "travel"}
	merged, err := store.Update(profile.Update{Occupation: &occupation, Interests: &interests})
	if err != nil {
		t.Fatalf("Update err: %v", err)
	}

	if merged.Occupation != "engineer" {
		t.Fatalf("occupation not updated: %+v", merged)
	}
	if merged.Nickname != "はな" || merged.Age != "twenties" {
		t.Fatalf("untouched fields changed: %+v", merged)
	}
	if len(merged.Interests) != 2 || merged.Interests[0] != "music" {
		t.Fatalf("interests not replaced: %v", merged.Interests)
	}

	// The merge is persisted, not just returned.
	got, ok := store.Get()
	if !ok || got.Occupation != "engineer" {
		t.Fatalf("persisted profile mismatch: ok=%v %+v", ok, got)
	}
}

func TestAuthStateFollowsProfile(t *testing.T) {
	store := newTestStore(t)

	state := store.AuthState()
	if state.IsAuthenticated || state.User != nil {
		t.Fatalf("expected signed-out state, got %+v", state)
	}

	if err := store.Save(sampleProfile()); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	state = store.AuthState()
	if !state.IsAuthenticated || state.User == nil || state.User.Nickname != "はな" {
		t.Fatalf("expected authenticated state, got %+v", state)
	}
}

func TestIsOnboardingComplete(t *testing.T) {
	store := newTestStore(t)

	if store.IsOnboardingComplete() {
		t.Fatal("expected false before save")
	}

	p := sampleProfile()
	p.IsOnboardingComplete = false
	if err := store.Save(p); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if store.IsOnboardingComplete() {
		t.Fatal("expected false when flag is unset")
	}

	p.IsOnboardingComplete = true
	if err := store.Save(p); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if !store.IsOnboardingComplete() {
		t.Fatal("expected true after completed save")
	}
}

func TestClearRemovesBothKeys(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(sampleProfile()); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	store.Clear()

	if _, ok := store.Get(); ok {
		t.Fatal("expected no profile after clear")
	}
	if state := store.AuthState(); state.IsAuthenticated {
		t.Fatalf("expected signed-out state after clear, got %+v", state)
	}
}
