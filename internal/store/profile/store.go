package profile

import (
	"errors"
	"sync"

	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
	"github.com/hayasepd/yorutomo/backend/internal/storage"
)

const (
	profileKey = "diary-user-profile"
	authKey    = "diary-auth-state"
)

// ErrNoProfile is returned when an update targets a profile that was never
// created.
var ErrNoProfile = errors.New("profile not found")

// Store owns the singleton user profile and the derived auth state. The two
// keys are always written together.
type Store struct {
	mu sync.Mutex
	kv *storage.Store
}

// NewStore binds a profile store to the local key-value storage.
func NewStore(kv *storage.Store) *Store {
	return &Store{kv: kv}
}

// Save persists the profile and marks the installation authenticated.
func (s *Store) Save(p profile.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(p)
}

func (s *Store) save(p profile.UserProfile) error {
	if err := s.kv.Write(profileKey, p); err != nil {
		return err
	}
	return s.kv.Write(authKey, profile.AuthState{IsAuthenticated: true, User: &p})
}

// Get returns the stored profile. A missing or unreadable record reports
// false, never an error.
func (s *Store) Get() (profile.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p profile.UserProfile
	if !s.kv.Read(profileKey, &p) {
		return profile.UserProfile{}, false
	}
	return p, true
}

// Update merges a partial update into the existing profile. Updating before
// onboarding is a domain error.
func (s *Store) Update(u profile.Update) (profile.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current profile.UserProfile
	if !s.kv.Read(profileKey, &current) {
		return profile.UserProfile{}, ErrNoProfile
	}

	merged := u.Apply(current)
	if err := s.save(merged); err != nil {
		return profile.UserProfile{}, err
	}
	return merged, nil
}

// IsOnboardingComplete reports whether a completed profile exists. False on
// a missing profile, never an error.
func (s *Store) IsOnboardingComplete() bool {
	p, ok := s.Get()
	return ok && p.IsOnboardingComplete
}

// AuthState returns the mocked authentication state; missing data degrades to
// the signed-out state.
func (s *Store) AuthState() profile.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state profile.AuthState
	if !s.kv.Read(authKey, &state) {
		return profile.AuthState{IsAuthenticated: false, User: nil}
	}
	return state
}

// Clear removes the profile and the auth state together.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Delete(profileKey)
	s.kv.Delete(authKey)
}
