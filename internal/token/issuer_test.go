package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ecommerce-backend/internal/model"
)

// memStore is an in-memory RevocationStore for tests.
type memStore struct {
	mu      sync.Mutex
	entries map[string]Entry // userID:tokenID -> entry
	getErr  error
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]Entry)}
}

func (s *memStore) Put(_ context.Context, userID, tokenID string, e Entry, _ time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID+":"+tokenID] = e
	return nil
}

func (s *memStore) Get(_ context.Context, userID, tokenID string) (Entry, bool, error) {
	if s.getErr != nil {
		return Entry{}, false, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID+":"+tokenID]
	return e, ok, nil
}

func (s *memStore) Delete(_ context.Context, userID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[userID+":"+tokenID]
	delete(s.entries, userID+":"+tokenID)
	return ok, nil
}

func (s *memStore) DeleteAll(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if len(k) > len(userID) && k[:len(userID)+1] == userID+":" {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteFamily(_ context.Context, userID, family string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if len(k) > len(userID) && k[:len(userID)+1] == userID+":" && e.Family == family {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type memUsers struct {
	users map[string]model.User
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return model.User{}, errors.New("no such user")
	}
	return u, nil
}

func testUser() model.User {
	return model.User{ID: "u-1", Email: "ada@example.com", Role: model.RoleCustomer}
}

func newTestIssuer(store RevocationStore) *Issuer {
	u := testUser()
	users := &memUsers{users: map[string]model.User{u.ID: u}}
	return NewIssuer("access-secret", "refresh-secret", 15, 7, store, users)
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	iss := newTestIssuer(newMemStore())
	u := testUser()

	raw, exp, err := iss.IssueAccessToken(u)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := iss.VerifyAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, u.Email, claims.Email)
	require.Equal(t, u.Role, claims.Role)
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	iss := newTestIssuer(newMemStore())

	_, err := iss.VerifyAccessToken("not-a-token")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyAccessTokenRejectsRefreshToken(t *testing.T) {
	// The two kinds use different secrets; a refresh token presented as an
	// access token must not verify.
	iss := newTestIssuer(newMemStore())

	refresh, _, err := iss.IssueRefreshToken(context.Background(), testUser())
	require.NoError(t, err)

	_, err = iss.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestRotateIssuesNewPairAndConsumesOld(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	pair, err := iss.Rotate(ctx, refresh)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, refresh, pair.RefreshToken)

	// The new refresh token rotates fine in turn.
	_, err = iss.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRotateKeepsFamily(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)
	first, err := iss.VerifyRefreshToken(refresh)
	require.NoError(t, err)

	pair, err := iss.Rotate(ctx, refresh)
	require.NoError(t, err)
	second, err := iss.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, first.Family, second.Family)
	require.NotEqual(t, first.ID, second.ID)
}

func TestRotateReplayRevokesFamily(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	pair, err := iss.Rotate(ctx, refresh)
	require.NoError(t, err)

	// Replaying the consumed token fails and burns the family.
	_, err = iss.Rotate(ctx, refresh)
	require.ErrorIs(t, err, ErrRevoked)

	// The descendant issued from the first rotation is dead too.
	_, err = iss.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrRevoked)
	require.Zero(t, store.count())
}

// rendezvousStore delays Get until two rotations have both read the same
// entry, so the atomic consume step alone decides which one wins.
type rendezvousStore struct {
	*memStore
	readers sync.WaitGroup
}

func (s *rendezvousStore) Get(ctx context.Context, userID, tokenID string) (Entry, bool, error) {
	s.readers.Done()
	s.readers.Wait()
	return s.memStore.Get(ctx, userID, tokenID)
}

func TestRotateConcurrentUseSingleWinner(t *testing.T) {
	store := &rendezvousStore{memStore: newMemStore()}
	store.readers.Add(2)
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := iss.Rotate(ctx, refresh)
			errs <- err
		}()
	}

	var wins, replays int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		case errors.Is(err, ErrRevoked):
			replays++
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, replays)
}

func TestRotateFailsClosedOnStoreError(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	store.getErr = errors.New("connection refused")
	_, err = iss.Rotate(ctx, refresh)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()

	refresh, _, err := iss.IssueRefreshToken(ctx, testUser())
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(ctx, refresh))
	require.NoError(t, iss.Revoke(ctx, refresh))
	require.NoError(t, iss.Revoke(ctx, "garbage"))

	_, err = iss.Rotate(ctx, refresh)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestRevokeAllKillsEverySession(t *testing.T) {
	store := newMemStore()
	iss := newTestIssuer(store)
	ctx := context.Background()
	u := testUser()

	first, _, err := iss.IssueRefreshToken(ctx, u)
	require.NoError(t, err)
	second, _, err := iss.IssueRefreshToken(ctx, u)
	require.NoError(t, err)

	require.NoError(t, iss.RevokeAll(ctx, u.ID))

	_, err = iss.Rotate(ctx, first)
	require.ErrorIs(t, err, ErrRevoked)
	_, err = iss.Rotate(ctx, second)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestAccessTTLSeconds(t *testing.T) {
	iss := newTestIssuer(newMemStore())
	require.Equal(t, 15*60, iss.AccessTTLSeconds())
}
