package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleetpark/internal/domain"
)

type fakeIdentity struct {
	mu sync.Mutex

	validAccess  map[string]domain.User
	validRefresh map[string]domain.TokenPair
	loginResult  domain.AuthResult
	loginErr     error
	logoutErr    error

	currentUserCalls int
	refreshCalls     int
	logoutCalls      int

	// si no es nil, CurrentUser avisa en started y espera release.
	started chan struct{}
	release chan struct{}
	// si no es nil, Refresh espera a que se cierre.
	refreshGate chan struct{}
	// rotate revoca el refresh token usado, como hace el servidor real.
	rotate bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		validAccess:  make(map[string]domain.User),
		validRefresh: make(map[string]domain.TokenPair),
	}
}

func (f *fakeIdentity) Login(_ context.Context, _, _ string) (domain.AuthResult, error) {
	if f.loginErr != nil {
		return domain.AuthResult{}, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeIdentity) CurrentUser(_ context.Context, accessToken string) (domain.User, error) {
	f.mu.Lock()
	f.currentUserCalls++
	started, release := f.started, f.release
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.validAccess[accessToken]
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (domain.TokenPair, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate := f.refreshGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, ok := f.validRefresh[refreshToken]
	if !ok {
		return domain.TokenPair{}, ErrUnauthorized
	}
	if f.rotate {
		delete(f.validRefresh, refreshToken)
	}
	return pair, nil
}

func (f *fakeIdentity) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeIdentity) Logout(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeStore(kv map[string]string) *fakeStore {
	s := &fakeStore{values: make(map[string]string)}
	for k, v := range kv {
		s.values[k] = v
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *fakeStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *fakeStore) value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

type recordedAlert struct {
	title, message string
	duration       time.Duration
}

type recorder struct {
	mu     sync.Mutex
	alerts []recordedAlert
	paths  []string
}

func (r *recorder) Show(title, message string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, recordedAlert{title, message, duration})
}

func (r *recorder) GoTo(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

var driver = domain.User{ID: "u1", Email: "driver@example.com", DisplayName: "Dana", Role: domain.RoleDriver}

func newTestManager(identity IdentityService, store CredentialStore, rec *recorder) *Manager {
	return NewManager(zap.NewNop(), identity, store, rec, rec, Settings{})
}

func TestManagerRestore_NoStoredToken(t *testing.T) {
	identity := newFakeIdentity()
	m := newTestManager(identity, newFakeStore(nil), &recorder{})

	m.Restore(context.Background())

	if m.State().Authenticated {
		t.Fatalf("expected empty session")
	}
	if identity.currentUserCalls != 0 {
		t.Fatalf("expected no identity call, got %d", identity.currentUserCalls)
	}
}

func TestManagerRestore_AcceptedToken(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	store := newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"})
	m := newTestManager(identity, store, &recorder{})

	m.Restore(context.Background())

	state := m.State()
	if !state.Authenticated || state.User == nil || state.User.ID != "u1" {
		t.Fatalf("expected populated session, got %+v", state)
	}
	if identity.refreshCalls != 0 {
		t.Fatalf("expected no refresh, got %d", identity.refreshCalls)
	}
	if store.value(KeyRole) != "DRIVER" {
		t.Fatalf("expected role persisted, got %q", store.value(KeyRole))
	}
}

func TestManagerRestore_RefreshAndRetry(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a2"] = driver
	identity.validRefresh["r1"] = domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	store := newFakeStore(map[string]string{KeyAccessToken: "expired", KeyRefreshToken: "r1"})
	m := newTestManager(identity, store, &recorder{})

	m.Restore(context.Background())

	if !m.State().Authenticated {
		t.Fatalf("expected populated session after refresh")
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", identity.refreshCalls)
	}
	if identity.currentUserCalls != 2 {
		t.Fatalf("expected one retried identity fetch, got %d calls", identity.currentUserCalls)
	}
	if store.value(KeyAccessToken) != "a2" || store.value(KeyRefreshToken) != "r2" {
		t.Fatalf("expected refreshed pair persisted, got %q/%q", store.value(KeyAccessToken), store.value(KeyRefreshToken))
	}
	if m.AccessToken() != "a2" {
		t.Fatalf("expected in-memory access token a2, got %q", m.AccessToken())
	}
}

func TestManagerRestore_InvalidRefreshClearsStore(t *testing.T) {
	identity := newFakeIdentity()
	store := newFakeStore(map[string]string{KeyAccessToken: "expired", KeyRefreshToken: "bad", KeyRole: "DRIVER"})
	m := newTestManager(identity, store, &recorder{})

	m.Restore(context.Background())

	if m.State().Authenticated {
		t.Fatalf("expected empty session")
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("expected one refresh attempt, got %d", identity.refreshCalls)
	}
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyRole} {
		if v := store.value(key); v != "" {
			t.Fatalf("expected %s cleared, got %q", key, v)
		}
	}
}

func TestManagerRestore_NoRefreshTokenClears(t *testing.T) {
	identity := newFakeIdentity()
	store := newFakeStore(map[string]string{KeyAccessToken: "expired"})
	m := newTestManager(identity, store, &recorder{})

	m.Restore(context.Background())

	if m.State().Authenticated {
		t.Fatalf("expected empty session")
	}
	if identity.refreshCalls != 0 {
		t.Fatalf("expected no refresh without token, got %d", identity.refreshCalls)
	}
	if store.value(KeyAccessToken) != "" {
		t.Fatalf("expected access token cleared")
	}
}

func TestManagerRestore_LogoutDuringRestoreDiscardsResult(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	identity.started = make(chan struct{})
	identity.release = make(chan struct{})
	store := newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"})
	m := newTestManager(identity, store, &recorder{})

	done := make(chan struct{})
	go func() {
		m.Restore(context.Background())
		close(done)
	}()

	<-identity.started
	m.Logout(context.Background())
	close(identity.release)
	<-done

	if m.State().Authenticated {
		t.Fatalf("expected stale restore result to be discarded")
	}
	if store.value(KeyAccessToken) != "" {
		t.Fatalf("expected store to stay cleared")
	}
}

func TestManagerLogin_InvalidCredentials(t *testing.T) {
	identity := newFakeIdentity()
	identity.loginErr = ErrInvalidCredentials
	rec := &recorder{}
	store := newFakeStore(nil)
	m := newTestManager(identity, store, rec)

	ok, err := m.Login(context.Background(), "user@x.com", "wrongpass")
	if ok {
		t.Fatalf("expected login to fail")
	}
	var loginErr *LoginError
	if !errors.As(err, &loginErr) || loginErr.Kind != LoginInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if m.State().Authenticated || store.value(KeyAccessToken) != "" {
		t.Fatalf("expected session unchanged")
	}
	if len(rec.alerts) != 0 {
		t.Fatalf("expected no alert on failure")
	}
}

func TestManagerLogin_ClassifiesFailures(t *testing.T) {
	cases := []struct {
		err  error
		kind LoginErrorKind
	}{
		{ErrUnavailable, LoginUnavailable},
		{errors.New("boom"), LoginUnexpected},
		{ErrUnauthorized, LoginInvalidCredentials},
	}
	for _, tc := range cases {
		identity := newFakeIdentity()
		identity.loginErr = tc.err
		m := newTestManager(identity, newFakeStore(nil), &recorder{})

		ok, err := m.Login(context.Background(), "user@x.com", "secret")
		var loginErr *LoginError
		if ok || !errors.As(err, &loginErr) || loginErr.Kind != tc.kind {
			t.Fatalf("expected kind %v for %v, got ok=%v err=%v", tc.kind, tc.err, ok, err)
		}
		if loginErr.Message == "" {
			t.Fatalf("expected displayable message")
		}
	}
}

func TestManagerLogin_RejectsEmptyInput(t *testing.T) {
	identity := newFakeIdentity()
	m := newTestManager(identity, newFakeStore(nil), &recorder{})

	ok, err := m.Login(context.Background(), "  ", "secret")
	var loginErr *LoginError
	if ok || !errors.As(err, &loginErr) || loginErr.Kind != LoginInvalidInput {
		t.Fatalf("expected invalid input, got ok=%v err=%v", ok, err)
	}
}

func TestManagerLogin_SuccessStoresSessionAndAlerts(t *testing.T) {
	identity := newFakeIdentity()
	identity.loginResult = domain.AuthResult{
		User:   driver,
		Tokens: domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"},
	}
	rec := &recorder{}
	store := newFakeStore(nil)
	m := newTestManager(identity, store, rec)

	ok, err := m.Login(context.Background(), "driver@example.com", "secret")
	if !ok || err != nil {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	if store.value(KeyAccessToken) != "a1" || store.value(KeyRefreshToken) != "r1" || store.value(KeyRole) != "DRIVER" {
		t.Fatalf("expected credentials persisted, got %+v", store.values)
	}
	state := m.State()
	if !state.Authenticated || state.User.Email != "driver@example.com" {
		t.Fatalf("expected session populated, got %+v", state)
	}
	if len(rec.alerts) != 1 || rec.alerts[0].duration != defaultAlertDuration {
		t.Fatalf("expected one success alert, got %+v", rec.alerts)
	}
}

func TestManagerLogout_ClearsEvenWhenServiceFails(t *testing.T) {
	identity := newFakeIdentity()
	identity.loginResult = domain.AuthResult{User: driver, Tokens: domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}}
	identity.logoutErr = ErrUnavailable
	rec := &recorder{}
	store := newFakeStore(nil)
	m := newTestManager(identity, store, rec)
	if ok, _ := m.Login(context.Background(), "driver@example.com", "secret"); !ok {
		t.Fatalf("login setup failed")
	}

	m.Logout(context.Background())

	if m.State().Authenticated {
		t.Fatalf("expected session cleared")
	}
	if store.value(KeyAccessToken) != "" || store.value(KeyRefreshToken) != "" || store.value(KeyRole) != "" {
		t.Fatalf("expected store cleared, got %+v", store.values)
	}
	if identity.logoutCalls != 1 {
		t.Fatalf("expected one logout call, got %d", identity.logoutCalls)
	}
	if len(rec.paths) != 1 || rec.paths[0] != defaultLoginPath {
		t.Fatalf("expected navigation to login, got %+v", rec.paths)
	}
}

func TestManagerUpdateUser(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	m := newTestManager(identity, newFakeStore(map[string]string{KeyAccessToken: "a1"}), &recorder{})

	name := "Dana R."
	m.UpdateUser(domain.UserPatch{DisplayName: &name})
	if m.State().Authenticated {
		t.Fatalf("update without session must be a no-op")
	}

	m.Restore(context.Background())
	m.UpdateUser(domain.UserPatch{DisplayName: &name, Organization: &domain.Organization{ID: "o1", Name: "Fleet SA"}})

	user := m.State().User
	if user.DisplayName != "Dana R." || user.Email != "driver@example.com" {
		t.Fatalf("expected shallow merge, got %+v", user)
	}
	if user.Organization == nil || user.Organization.Name != "Fleet SA" {
		t.Fatalf("expected organization set, got %+v", user.Organization)
	}
}

func TestManagerDo_RefreshesOnceAndRetries(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	identity.validRefresh["r1"] = domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	store := newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"})
	m := newTestManager(identity, store, &recorder{})
	m.Restore(context.Background())

	var seen []string
	err := m.Do(context.Background(), func(_ context.Context, token string) error {
		seen = append(seen, token)
		if token != "a2" {
			return ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retried call to succeed, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "a1" || seen[1] != "a2" {
		t.Fatalf("unexpected tokens used: %+v", seen)
	}
	if identity.refreshCalls != 1 {
		t.Fatalf("expected one refresh, got %d", identity.refreshCalls)
	}
	if store.value(KeyAccessToken) != "a2" {
		t.Fatalf("expected refreshed token persisted")
	}
}

func TestManagerDo_ExpiresWhenRefreshFails(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	rec := &recorder{}
	store := newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "revoked"})
	m := newTestManager(identity, store, rec)
	m.Restore(context.Background())

	err := m.Do(context.Background(), func(context.Context, string) error {
		return ErrUnauthorized
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if m.State().Authenticated || store.value(KeyAccessToken) != "" {
		t.Fatalf("expected session cleared")
	}
	if len(rec.paths) != 1 || rec.paths[0] != defaultLoginPath {
		t.Fatalf("expected redirect to login, got %+v", rec.paths)
	}
}

func TestManagerDo_PassesThroughOtherErrors(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	m := newTestManager(identity, newFakeStore(map[string]string{KeyAccessToken: "a1"}), &recorder{})
	m.Restore(context.Background())

	boom := errors.New("boom")
	if err := m.Do(context.Background(), func(context.Context, string) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected passthrough error, got %v", err)
	}
	if !m.State().Authenticated {
		t.Fatalf("non-auth errors must not clear the session")
	}
}

func TestManagerState_SnapshotDoesNotShareOrganization(t *testing.T) {
	identity := newFakeIdentity()
	org := &domain.Organization{ID: "o1", Name: "Fleet"}
	user := driver
	user.Organization = org
	identity.loginResult = domain.AuthResult{User: user, Tokens: domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"}}
	m := newTestManager(identity, newFakeStore(nil), &recorder{})
	if ok, err := m.Login(context.Background(), "driver@example.com", "secret"); !ok {
		t.Fatalf("login setup failed: %v", err)
	}

	m.State().User.Organization.Name = "Changed"
	org.Name = "Changed too"

	if got := m.State().User.Organization.Name; got != "Fleet" {
		t.Fatalf("expected stored organization untouched, got %q", got)
	}

	m.UpdateUser(domain.UserPatch{Organization: org})
	org.Name = "After patch"
	if got := m.State().User.Organization.Name; got != "Changed too" {
		t.Fatalf("expected patch value copied, got %q", got)
	}
}

func TestManagerDo_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	const callers = 20

	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	identity.validRefresh["r1"] = domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	identity.rotate = true
	identity.refreshGate = make(chan struct{})
	store := newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"})
	rec := &recorder{}
	m := newTestManager(identity, store, rec)
	m.Restore(context.Background())

	var rejected sync.WaitGroup
	rejected.Add(callers)
	var succeeded atomic.Int32
	call := func(_ context.Context, token string) error {
		if token == "a2" {
			succeeded.Add(1)
			return nil
		}
		rejected.Done()
		return ErrUnauthorized
	}

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Do(context.Background(), call)
		}()
	}

	rejected.Wait()
	// deja que los rechazados lleguen al refresh compartido antes de liberarlo.
	time.Sleep(20 * time.Millisecond)
	close(identity.refreshGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected every caller to recover, got %v", err)
		}
	}
	if n := identity.refreshCount(); n != 1 {
		t.Fatalf("expected one refresh, got %d", n)
	}
	if int(succeeded.Load()) != callers {
		t.Fatalf("expected %d retried calls, got %d", callers, succeeded.Load())
	}
	if !m.State().Authenticated || m.AccessToken() != "a2" {
		t.Fatalf("expected session kept with rotated token")
	}
	if store.value(KeyRefreshToken) != "r2" {
		t.Fatalf("expected rotated refresh token persisted, got %q", store.value(KeyRefreshToken))
	}
	if len(rec.paths) != 0 {
		t.Fatalf("expected no redirect, got %+v", rec.paths)
	}
}

func TestManagerDo_UsesTokenRotatedByAnotherCaller(t *testing.T) {
	identity := newFakeIdentity()
	identity.validAccess["a1"] = driver
	identity.validRefresh["r1"] = domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	identity.rotate = true
	m := newTestManager(identity, newFakeStore(map[string]string{KeyAccessToken: "a1", KeyRefreshToken: "r1"}), &recorder{})
	m.Restore(context.Background())

	// la primera llamada recibe 401 despues de que otro flujo ya roto el par.
	var seen []string
	err := m.Do(context.Background(), func(ctx context.Context, token string) error {
		seen = append(seen, token)
		if token == "a1" {
			inner := func(_ context.Context, token string) error {
				if token == "a1" {
					return ErrUnauthorized
				}
				return nil
			}
			if err := m.Do(ctx, inner); err != nil {
				t.Fatalf("inner call: %v", err)
			}
			return ErrUnauthorized
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry with rotated token, got %v", err)
	}
	if len(seen) != 2 || seen[1] != "a2" {
		t.Fatalf("unexpected tokens used: %+v", seen)
	}
	if n := identity.refreshCount(); n != 1 {
		t.Fatalf("expected one refresh, got %d", n)
	}
}
