package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fleetpark/internal/domain"
)

// errStaleSession indica que la sesion cambio (login/logout) mientras un refresh estaba en vuelo.
var errStaleSession = errors.New("session changed during refresh")

const (
	defaultLoginPath     = "/login"
	defaultAlertDuration = 3 * time.Second
)

// Settings agrupa parametros opcionales del Manager.
type Settings struct {
	LoginPath     string
	AlertDuration time.Duration
}

// State es la respuesta que consumen los route guards.
type State struct {
	Authenticated bool
	User          *domain.User
}

// Manager mantiene la unica sesion autenticada del proceso.
// Se construye una vez en main y se inyecta a quien la necesite.
type Manager struct {
	logger    *zap.Logger
	identity  IdentityService
	store     CredentialStore
	alerter   Alerter
	navigator Navigator
	settings  Settings

	refreshGroup singleflight.Group

	mu           sync.Mutex
	user         *domain.User
	accessToken  string
	refreshToken string
	// epoch cambia en cada login/logout/expiracion; los resultados de red
	// obtenidos bajo un epoch anterior se descartan.
	epoch uint64
}

func NewManager(logger *zap.Logger, identity IdentityService, store CredentialStore, alerter Alerter, navigator Navigator, settings Settings) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerter == nil {
		alerter = AlerterFunc(func(string, string, time.Duration) {})
	}
	if navigator == nil {
		navigator = NavigatorFunc(func(string) {})
	}
	if strings.TrimSpace(settings.LoginPath) == "" {
		settings.LoginPath = defaultLoginPath
	}
	if settings.AlertDuration <= 0 {
		settings.AlertDuration = defaultAlertDuration
	}
	return &Manager{
		logger:    logger,
		identity:  identity,
		store:     store,
		alerter:   alerter,
		navigator: navigator,
		settings:  settings,
	}
}

// Restore reconstruye la sesion desde las credenciales persistidas.
// Nunca falla: cualquier error deja la sesion vacia.
func (m *Manager) Restore(ctx context.Context) {
	epoch := m.currentEpoch()

	access, err := m.store.Get(ctx, KeyAccessToken)
	if err != nil {
		m.logger.Warn("restore: read access token failed", zap.Error(err))
		return
	}
	if access == "" {
		return
	}
	refresh, err := m.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		m.logger.Warn("restore: read refresh token failed", zap.Error(err))
		refresh = ""
	}

	user, err := m.identity.CurrentUser(ctx, access)
	if err == nil {
		m.commit(ctx, epoch, user, domain.TokenPair{AccessToken: access, RefreshToken: refresh}, "restore")
		return
	}
	m.logger.Info("restore: stored access token rejected", zap.Error(err))

	if refresh == "" {
		m.clearIfCurrent(ctx, epoch)
		return
	}

	pair, err := m.refresh(ctx, epoch, refresh)
	if errors.Is(err, errStaleSession) {
		m.logger.Debug("restore: session changed during refresh, discarding result")
		return
	}
	if err != nil {
		m.logger.Warn("restore: refresh failed", zap.Error(err))
		m.clearIfCurrent(ctx, epoch)
		return
	}

	user, err = m.identity.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		m.logger.Warn("restore: identity fetch failed after refresh", zap.Error(err))
		m.clearIfCurrent(ctx, epoch)
		return
	}
	m.commit(ctx, epoch, user, pair, "restore")
}

// Login valida credenciales contra el servicio de identidad. Devuelve false y un
// *LoginError cuando falla; la sesion actual no se modifica en ese caso.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return false, &LoginError{Kind: LoginInvalidInput, Message: "Email and password are required"}
	}

	result, err := m.identity.Login(ctx, identifier, secret)
	if err != nil {
		loginErr := classifyLoginError(err)
		m.logger.Info("login failed", zap.String("kind", loginErr.Kind.String()), zap.Error(err))
		return false, loginErr
	}
	if result.Tokens.AccessToken == "" {
		return false, &LoginError{Kind: LoginUnexpected, Message: "An unexpected error occurred while signing in", Err: errors.New("empty access token")}
	}

	// Un login invalida cualquier restore o refresh que siga en vuelo.
	epoch := m.bumpEpoch()
	if !m.commit(ctx, epoch, result.User, result.Tokens, "login") {
		return false, &LoginError{Kind: LoginUnexpected, Message: "An unexpected error occurred while signing in", Err: errors.New("session changed during login")}
	}

	name := result.User.DisplayName
	if name == "" {
		name = result.User.Email
	}
	m.alerter.Show("Signed in", fmt.Sprintf("Welcome, %s", name), m.settings.AlertDuration)
	return true, nil
}

// Logout avisa al servicio (best-effort), borra las credenciales locales y navega al login.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	access, refresh := m.accessToken, m.refreshToken
	m.epoch++
	m.clearLocked(ctx)
	m.mu.Unlock()

	if access != "" || refresh != "" {
		if err := m.identity.Logout(ctx, access, refresh); err != nil {
			m.logger.Warn("logout: identity service call failed", zap.Error(err))
		}
	}
	m.navigator.GoTo(m.settings.LoginPath)
}

// UpdateUser mezcla un patch parcial sobre el usuario actual. No hace nada sin sesion.
func (m *Manager) UpdateUser(patch domain.UserPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return
	}
	updated := patch.Apply(m.user.Clone())
	m.user = &updated
}

// State devuelve una copia del estado actual.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return State{}
	}
	u := m.user.Clone()
	return State{Authenticated: true, User: &u}
}

func (m *Manager) IsAuthenticated() bool {
	return m.State().Authenticated
}

func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// Do ejecuta una llamada protegida con el access token actual. Ante ErrUnauthorized
// intenta un unico refresh y reintenta una vez; si no se recupera, expira la sesion.
func (m *Manager) Do(ctx context.Context, call func(ctx context.Context, accessToken string) error) error {
	m.mu.Lock()
	access, refresh, epoch := m.accessToken, m.refreshToken, m.epoch
	m.mu.Unlock()

	if access == "" {
		m.expire(ctx, epoch)
		return ErrUnauthorized
	}

	err := call(ctx, access)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	retryToken, ok := m.newerAccessToken(epoch, access)
	if !ok {
		if refresh == "" {
			m.expire(ctx, epoch)
			return err
		}
		pair, rerr := m.refresh(ctx, epoch, refresh)
		switch {
		case errors.Is(rerr, errStaleSession):
			return ErrUnauthorized
		case rerr != nil:
			// otro flujo pudo rotar el par mientras este refresh fallaba.
			if newer, ok := m.newerAccessToken(epoch, access); ok {
				retryToken = newer
				break
			}
			m.logger.Warn("refresh after unauthorized call failed", zap.Error(rerr))
			m.expire(ctx, epoch)
			return fmt.Errorf("%w: %v", ErrUnauthorized, rerr)
		default:
			retryToken = pair.AccessToken
		}
	}

	err = call(ctx, retryToken)
	if errors.Is(err, ErrUnauthorized) {
		m.expire(ctx, epoch)
	}
	return err
}

// refresh comparte un mismo intercambio entre llamadas concurrentes con el mismo token.
// El par nuevo queda persistido antes de que cualquier llamador reciba el resultado.
func (m *Manager) refresh(ctx context.Context, epoch uint64, refreshToken string) (domain.TokenPair, error) {
	v, err, shared := m.refreshGroup.Do(refreshToken, func() (any, error) {
		pair, err := m.identity.Refresh(ctx, refreshToken)
		if err != nil {
			return domain.TokenPair{}, err
		}
		if pair.AccessToken == "" {
			return domain.TokenPair{}, errors.New("refresh returned empty access token")
		}
		if pair.RefreshToken == "" {
			pair.RefreshToken = refreshToken
		}
		if !m.persistTokens(ctx, epoch, pair) {
			return domain.TokenPair{}, errStaleSession
		}
		return pair, nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	if m.currentEpoch() != epoch {
		return domain.TokenPair{}, errStaleSession
	}
	m.logger.Info("session tokens refreshed", zap.Bool("shared", shared))
	return v.(domain.TokenPair), nil
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) bumpEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	return m.epoch
}

// newerAccessToken devuelve el token actual si otro flujo ya lo renovo.
func (m *Manager) newerAccessToken(epoch uint64, used string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.accessToken == "" || m.accessToken == used {
		return "", false
	}
	return m.accessToken, true
}

// commit instala usuario y tokens si el epoch sigue vigente.
func (m *Manager) commit(ctx context.Context, epoch uint64, user domain.User, pair domain.TokenPair, origin string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.logger.Debug("discarding stale session result", zap.String("origin", origin))
		return false
	}
	m.writeTokensLocked(ctx, pair)
	if user.Role.Valid() {
		if err := m.store.Set(ctx, KeyRole, user.Role.String()); err != nil {
			m.logger.Warn("persist role failed", zap.Error(err))
		}
	}
	u := user.Clone()
	m.user = &u
	m.logger.Info("session established", zap.String("origin", origin), zap.String("user_id", user.ID))
	return true
}

func (m *Manager) persistTokens(ctx context.Context, epoch uint64, pair domain.TokenPair) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return false
	}
	m.writeTokensLocked(ctx, pair)
	return true
}

func (m *Manager) writeTokensLocked(ctx context.Context, pair domain.TokenPair) {
	m.accessToken = pair.AccessToken
	m.refreshToken = pair.RefreshToken
	if err := m.store.Set(ctx, KeyAccessToken, pair.AccessToken); err != nil {
		m.logger.Warn("persist access token failed", zap.Error(err))
	}
	if pair.RefreshToken != "" {
		if err := m.store.Set(ctx, KeyRefreshToken, pair.RefreshToken); err != nil {
			m.logger.Warn("persist refresh token failed", zap.Error(err))
		}
	}
}

func (m *Manager) clearIfCurrent(ctx context.Context, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return false
	}
	m.epoch++
	m.clearLocked(ctx)
	return true
}

// expire limpia la sesion tras un unauthorized irrecuperable y manda al login.
func (m *Manager) expire(ctx context.Context, epoch uint64) {
	if m.clearIfCurrent(ctx, epoch) {
		m.logger.Info("session expired")
		m.navigator.GoTo(m.settings.LoginPath)
	}
}

func (m *Manager) clearLocked(ctx context.Context) {
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyRole} {
		if err := m.store.Remove(ctx, key); err != nil {
			m.logger.Warn("remove stored credential failed", zap.String("key", key), zap.Error(err))
		}
	}
}
