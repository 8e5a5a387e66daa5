package token

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OsmanovRuslan/EcoSharing-sub000/internal/credential/entity"
)

type memRefreshStore struct {
	rows map[string]*RefreshToken
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{rows: map[string]*RefreshToken{}}
}

func (s *memRefreshStore) Insert(_ context.Context, rt *RefreshToken) error {
	if _, exists := s.rows[rt.Token]; exists {
		return errors.New("unique constraint violation on token")
	}
	clone := *rt
	s.rows[rt.Token] = &clone
	return nil
}

func (s *memRefreshStore) FindByToken(_ context.Context, token string) (*RefreshToken, error) {
	rt, ok := s.rows[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *rt
	return &clone, nil
}

func (s *memRefreshStore) DeleteByUserID(_ context.Context, userID int64) error {
	for token, rt := range s.rows {
		if rt.UserID == userID {
			delete(s.rows, token)
		}
	}
	return nil
}

func (s *memRefreshStore) DeleteByToken(_ context.Context, token string) error {
	delete(s.rows, token)
	return nil
}

func (s *memRefreshStore) countForUser(userID int64) int {
	n := 0
	for _, rt := range s.rows {
		if rt.UserID == userID {
			n++
		}
	}
	return n
}

type memCredentialGetter struct {
	users map[int64]*entity.Credential
}

func (g *memCredentialGetter) GetByUserID(_ context.Context, userID int64) (*entity.Credential, error) {
	cred, ok := g.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cred, nil
}

func newTestRotation(t *testing.T) (*RotationService, *memRefreshStore) {
	t.Helper()
	mgr := newTestManager(t)
	store := newMemRefreshStore()
	creds := &memCredentialGetter{users: map[int64]*entity.Credential{
		42: {UserID: 42, PasswordHash: "x", IsActive: true, RolesCSV: "ROLE_USER"},
	}}
	return NewRotationService(mgr, store, creds, zap.NewNop().Sugar()), store
}

func TestCreateEnforcesSingleActiveToken(t *testing.T) {
	svc, store := newTestRotation(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := svc.Create(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	if got := store.countForUser(42); got != 1 {
		t.Fatalf("user has %d stored tokens, want 1", got)
	}
	if _, err := svc.FindByToken(ctx, first.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("first token lookup err = %v, want ErrTokenNotFound", err)
	}
	if _, err := svc.FindByToken(ctx, second.Token); err != nil {
		t.Errorf("second token lookup err = %v, want nil", err)
	}
}

func TestCreateRequiresCredential(t *testing.T) {
	svc, _ := newTestRotation(t)
	if _, err := svc.Create(context.Background(), 99, "ghost"); err == nil {
		t.Fatal("Create for unknown user should fail")
	}
}

func TestVerifyExpirationLiveTokenUnchanged(t *testing.T) {
	svc, _ := newTestRotation(t)
	ctx := context.Background()

	rt, err := svc.Create(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := svc.VerifyExpiration(ctx, rt)
	if err != nil {
		t.Fatalf("VerifyExpiration: %v", err)
	}
	if got.Token != rt.Token {
		t.Errorf("token changed across VerifyExpiration")
	}
}

func TestVerifyExpirationDeletesExpiredToken(t *testing.T) {
	svc, store := newTestRotation(t)
	ctx := context.Background()

	rt, err := svc.Create(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc.now = func() time.Time { return rt.ExpiresAt.Add(time.Second) }

	if _, err := svc.VerifyExpiration(ctx, rt); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if got := store.countForUser(42); got != 0 {
		t.Fatalf("expired token still stored, count = %d", got)
	}
	// the repeat lookup on the same string now misses
	if _, err := svc.FindByToken(ctx, rt.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestDeleteByUserIDRevokesAll(t *testing.T) {
	svc, store := newTestRotation(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 42, "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.DeleteByUserID(ctx, 42); err != nil {
		t.Fatalf("DeleteByUserID: %v", err)
	}
	if got := store.countForUser(42); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
}
