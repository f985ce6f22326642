package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/storage"
)

var testUser = User{ID: 7, Email: "amina@example.com", MpesaNumber: "0712345678"}

type doerFunc func(ctx context.Context, req httpclient.Request, dest interface{}) error

func (f doerFunc) Do(ctx context.Context, req httpclient.Request, dest interface{}) error {
	return f(ctx, req, dest)
}

func respond(dest interface{}, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// fakeAuthority answers login and profile calls for one known account
type fakeAuthority struct {
	calls  atomic.Int32
	access string
	meHook func()
}

func (f *fakeAuthority) Do(_ context.Context, req httpclient.Request, dest interface{}) error {
	f.calls.Add(1)
	switch req.Path {
	case pathLogin:
		body := req.Body.(map[string]string)
		if body["password"] != "secret" {
			return apperrors.FromHTTPStatus(http.StatusUnauthorized, "No active account found with the given credentials")
		}
		return respond(dest, Tokens{Access: f.access, Refresh: "refresh"})
	case pathMe:
		if f.meHook != nil {
			f.meHook()
		}
		if req.Headers["Authorization"] != "Bearer "+f.access {
			return apperrors.FromHTTPStatus(http.StatusUnauthorized, "")
		}
		return respond(dest, testUser)
	}
	return apperrors.FromHTTPStatus(http.StatusNotFound, "Not found.")
}

func newTestManager(t *testing.T, doer Doer, clock clockwork.Clock) (*Manager, storage.KV) {
	t.Helper()
	store := storage.NewMemoryKV()
	return NewManager(Options{
		Client: doer,
		Store:  store,
		Clock:  clock,
		Logger: logging.NewNop(),
	}), store
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

func TestLoginCommitsAndPersists(t *testing.T) {
	clock := clockwork.NewFakeClock()
	auth := &fakeAuthority{access: "access-1"}
	mgr, store := newTestManager(t, auth, clock)

	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

	snap := mgr.Snapshot()
	require.True(t, snap.LoggedIn())
	assert.Equal(t, testUser.Email, snap.User.Email)
	assert.False(t, snap.AgeVerified)
	assert.False(t, snap.Loading)

	raw, err := store.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	var saved persisted
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, "access-1", saved.Tokens.Access)
	assert.Equal(t, testUser.ID, saved.User.ID)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	auth := &fakeAuthority{access: "access-1"}
	mgr, store := newTestManager(t, auth, clockwork.NewFakeClock())

	err := mgr.Login(context.Background(), "amina@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.False(t, mgr.Active())

	_, err = store.Get(context.Background(), DefaultStorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoginTransportFailureStaysTransport(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req httpclient.Request, dest interface{}) error {
		return apperrors.Transport(context.DeadlineExceeded, "Network error. Check your connection.")
	})
	mgr, _ := newTestManager(t, doer, clockwork.NewFakeClock())

	err := mgr.Login(context.Background(), "amina@example.com", "secret")
	assert.True(t, apperrors.IsTransport(err))
	assert.False(t, mgr.Active())
}

func TestLoginRequiresCredentials(t *testing.T) {
	auth := &fakeAuthority{access: "access-1"}
	mgr, _ := newTestManager(t, auth, clockwork.NewFakeClock())

	err := mgr.Login(context.Background(), " ", "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, auth.calls.Load())
}

func TestLogoutWinsOverInFlightLogin(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	auth := &fakeAuthority{access: "access-1"}
	auth.meHook = func() {
		once.Do(func() { close(entered) })
		<-release
	}
	mgr, store := newTestManager(t, auth, clockwork.NewFakeClock())

	errCh := make(chan error, 1)
	go func() {
		errCh <- mgr.Login(context.Background(), "amina@example.com", "secret")
	}()

	<-entered
	mgr.Logout()
	close(release)

	err := <-errCh
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.False(t, mgr.Active())
	_, err = store.Get(context.Background(), DefaultStorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInactivityTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr, store := newTestManager(t, &fakeAuthority{access: "access-1"}, clock)
	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

	clock.Advance(2*time.Minute + 59*time.Second)
	mgr.Activity(ActivityClick)

	clock.Advance(2*time.Minute + 59*time.Second)
	assert.True(t, mgr.Active(), "activity at 2:59 must restart the countdown")

	mgr.Activity(Activity("scroll"))
	clock.Advance(time.Second)

	assert.Eventually(t, func() bool { return !mgr.Active() }, time.Second, 5*time.Millisecond)
	_, err := store.Get(context.Background(), DefaultStorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActivityWithoutSessionIsIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr, _ := newTestManager(t, &fakeAuthority{access: "access-1"}, clock)

	mgr.Activity(ActivityKeyPress)
	clock.Advance(DefaultInactivityTimeout * 2)
	assert.False(t, mgr.Active())
}

func TestRequestWithoutSessionMakesNoCall(t *testing.T) {
	auth := &fakeAuthority{access: "access-1"}
	mgr, _ := newTestManager(t, auth, clockwork.NewFakeClock())

	err := mgr.Request(context.Background(), httpclient.Request{Path: "/api/wallet/me/"}, nil)
	assert.True(t, apperrors.IsAuth(err))
	assert.Zero(t, auth.calls.Load())
}

func TestRequestInjectsBearerAndExpiresOn401(t *testing.T) {
	var seen string
	auth := &fakeAuthority{access: "access-1"}
	doer := doerFunc(func(ctx context.Context, req httpclient.Request, dest interface{}) error {
		if req.Path == "/api/wallet/me/" {
			seen = req.Headers["Authorization"]
			return apperrors.FromHTTPStatus(http.StatusUnauthorized, "Token is invalid or expired")
		}
		return auth.Do(ctx, req, dest)
	})
	mgr, store := newTestManager(t, doer, clockwork.NewFakeClock())
	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

	err := mgr.Request(context.Background(), httpclient.Request{Path: "/api/wallet/me/"}, nil)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, "Bearer access-1", seen)
	assert.False(t, mgr.Active())
	_, err = store.Get(context.Background(), DefaultStorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRequestWithExpiredAccessTokenSkipsNetwork(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	auth := &fakeAuthority{access: signedToken(t, clock.Now().Add(time.Minute))}
	mgr, _ := newTestManager(t, auth, clock)
	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))
	assert.Equal(t, clock.Now().Add(time.Minute).Unix(), mgr.Snapshot().AccessExpiresAt.Unix())

	clock.Advance(2 * time.Minute)
	before := auth.calls.Load()

	err := mgr.Request(context.Background(), httpclient.Request{Path: pathMe}, nil)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, before, auth.calls.Load())
	assert.False(t, mgr.Active())
}

func TestRestore(t *testing.T) {
	t.Run("valid session is committed", func(t *testing.T) {
		auth := &fakeAuthority{access: "access-1"}
		mgr, store := newTestManager(t, auth, clockwork.NewFakeClock())
		raw, _ := json.Marshal(persisted{User: &testUser, Tokens: &Tokens{Access: "access-1"}})
		require.NoError(t, store.Set(context.Background(), DefaultStorageKey, raw))
		assert.True(t, mgr.Snapshot().Loading)

		require.NoError(t, mgr.Restore(context.Background()))
		assert.True(t, mgr.Active())
		assert.False(t, mgr.Snapshot().Loading)
	})

	t.Run("rejected token purges storage", func(t *testing.T) {
		auth := &fakeAuthority{access: "access-2"}
		mgr, store := newTestManager(t, auth, clockwork.NewFakeClock())
		raw, _ := json.Marshal(persisted{User: &testUser, Tokens: &Tokens{Access: "stale"}})
		require.NoError(t, store.Set(context.Background(), DefaultStorageKey, raw))

		err := mgr.Restore(context.Background())
		assert.True(t, apperrors.IsAuth(err))
		assert.False(t, mgr.Active())
		assert.False(t, mgr.Snapshot().Loading)
		_, err = store.Get(context.Background(), DefaultStorageKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("malformed document purges storage", func(t *testing.T) {
		auth := &fakeAuthority{access: "access-1"}
		mgr, store := newTestManager(t, auth, clockwork.NewFakeClock())
		require.NoError(t, store.Set(context.Background(), DefaultStorageKey, []byte("{not json")))

		assert.Error(t, mgr.Restore(context.Background()))
		assert.Zero(t, auth.calls.Load())
		_, err := store.Get(context.Background(), DefaultStorageKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("nothing stored", func(t *testing.T) {
		mgr, _ := newTestManager(t, &fakeAuthority{}, clockwork.NewFakeClock())
		require.NoError(t, mgr.Restore(context.Background()))
		assert.False(t, mgr.Active())
		assert.False(t, mgr.Snapshot().Loading)
	})
}

func TestRegister(t *testing.T) {
	var body RegisterPayload
	doer := doerFunc(func(ctx context.Context, req httpclient.Request, dest interface{}) error {
		body = req.Body.(RegisterPayload)
		return respond(dest, registerResponse{User: testUser, Access: "a", Refresh: "r"})
	})
	mgr, _ := newTestManager(t, doer, clockwork.NewFakeClock())

	err := mgr.Register(context.Background(), RegisterPayload{Email: "bad", MpesaNumber: "0712345678", Password: "x"})
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, mgr.Active())

	require.NoError(t, mgr.Register(context.Background(), RegisterPayload{
		Email:       "amina@example.com",
		MpesaNumber: "+254 712 345 678",
		Password:    "secret",
	}))
	assert.Equal(t, "254712345678", body.MpesaNumber)
	assert.True(t, mgr.Active())
}

func TestAgeGate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	t.Run("adult is verified for the process", func(t *testing.T) {
		mgr, _ := newTestManager(t, &fakeAuthority{access: "a"}, clock)
		require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

		require.NoError(t, mgr.VerifyBirthYear(1990))
		assert.True(t, mgr.Snapshot().AgeVerified)
	})

	t.Run("minor is logged out", func(t *testing.T) {
		mgr, _ := newTestManager(t, &fakeAuthority{access: "a"}, clock)
		require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

		err := mgr.VerifyBirthYear(2010)
		assert.True(t, apperrors.IsValidation(err))
		assert.False(t, mgr.Active())
	})

	t.Run("declining logs out", func(t *testing.T) {
		mgr, _ := newTestManager(t, &fakeAuthority{access: "a"}, clock)
		require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

		assert.Error(t, mgr.DeclineAge())
		assert.False(t, mgr.Active())
	})

	t.Run("age flag does not survive restore", func(t *testing.T) {
		mgr, store := newTestManager(t, &fakeAuthority{access: "a"}, clock)
		require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))
		mgr.MarkAgeVerified()

		restored := NewManager(Options{Client: &fakeAuthority{access: "a"}, Store: store, Clock: clock, Logger: logging.NewNop()})
		require.NoError(t, restored.Restore(context.Background()))
		assert.False(t, restored.Snapshot().AgeVerified)
	})
}

func TestSubscribeReceivesChanges(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeAuthority{access: "a"}, clockwork.NewFakeClock())

	var mu sync.Mutex
	var seen []bool
	unsubscribe := mgr.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.LoggedIn())
		mu.Unlock()
	})

	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))
	mgr.Logout()
	unsubscribe()
	require.NoError(t, mgr.Login(context.Background(), "amina@example.com", "secret"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestNormalizeMpesaNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0712345678", "0712345678", false},
		{"254712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"0812345678", "", true},
		{"07123", "", true},
		{"07a2345678", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeMpesaNumber(tt.in)
		if tt.wantErr {
			assert.True(t, apperrors.IsValidation(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
