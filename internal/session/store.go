// Package session хранит сессию пользователя и управляет её жизненным циклом.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultLogoutTimeout ограничивает best-effort вызов POST /logout.
const DefaultLogoutTimeout = 3 * time.Second

// Store — единственный владелец сессии. Остальные компоненты читают её только через Current/Token.
type Store struct {
	mu            sync.RWMutex
	session       domain.Session
	durable       domain.KVStore
	auth          domain.AuthAPI
	logger        *log.Entry
	logoutTimeout time.Duration
}

// NewStore создаёт хранилище сессии поверх долговременного хранилища клиента.
func NewStore(durable domain.KVStore, auth domain.AuthAPI, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.New().WithField("component", "session")
	}
	return &Store{
		durable:       durable,
		auth:          auth,
		logger:        logger,
		logoutTimeout: DefaultLogoutTimeout,
	}
}

// SetLogoutTimeout меняет таймаут удалённого logout.
func (s *Store) SetLogoutTimeout(d time.Duration) {
	if d > 0 {
		s.logoutTimeout = d
	}
}

// Restore восстанавливает сессию из хранилища при старте. Сеть не используется.
func (s *Store) Restore(ctx context.Context) (domain.Session, error) {
	token, err := s.durable.Get(ctx, domain.KeyToken)
	if errors.Is(err, domain.ErrKeyNotFound) || (err == nil && token == "") {
		s.set(domain.Session{})
		s.logger.Debug("no persisted session")
		return domain.Session{}, nil
	}
	if err != nil {
		s.set(domain.Session{})
		return domain.Session{}, fmt.Errorf("restore session token: %w", err)
	}

	sess := domain.Session{Token: token, ExpiresAt: tokenExpiry(token)}

	raw, err := s.durable.Get(ctx, domain.KeyUser)
	switch {
	case err == nil:
		if user, ok := api.UserFromJSON(raw); ok {
			sess.User = &user
		} else {
			s.logger.Warn("persisted user record is unreadable, continuing without profile")
		}
	case errors.Is(err, domain.ErrKeyNotFound):
		s.logger.Warn("persisted session has no user record")
	default:
		s.logger.WithError(err).Warn("failed to read persisted user record")
	}

	s.set(sess)
	fields := log.Fields{"expires_at": sess.ExpiresAt}
	if sess.User != nil {
		fields["user_id"] = sess.User.ID
		fields["role"] = sess.User.Role
	}
	s.logger.WithFields(fields).Info("session restored")
	return s.Current(), nil
}

// Login выполняет вход и сохраняет токен и профиль. При ошибке сессия остаётся неаутентифицированной.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	if err := creds.Validate(); err != nil {
		return domain.Session{}, err
	}

	token, user, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.logger.WithError(err).WithField("username", creds.Username).Warn("login failed")
		return domain.Session{}, err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return domain.Session{}, fmt.Errorf("encode user: %w", err)
	}
	if err := s.durable.Set(ctx, domain.KeyToken, token); err != nil {
		return domain.Session{}, fmt.Errorf("persist token: %w", err)
	}
	if err := s.durable.Set(ctx, domain.KeyUser, string(payload)); err != nil {
		_ = s.durable.Delete(ctx, domain.KeyToken)
		return domain.Session{}, fmt.Errorf("persist user: %w", err)
	}

	s.set(domain.Session{Token: token, User: &user, ExpiresAt: tokenExpiry(token)})
	s.logger.WithFields(log.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("logged in")
	return s.Current(), nil
}

// Signup регистрирует пользователя. Сессия не создаётся: после регистрации нужен вход.
func (s *Store) Signup(ctx context.Context, form domain.SignupForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	msg, err := s.auth.Signup(ctx, form)
	if err != nil {
		s.logger.WithError(err).WithField("username", form.Username).Warn("signup failed")
		return "", err
	}
	s.logger.WithField("username", form.Username).Info("signed up")
	return msg, nil
}

// Logout очищает локальную сессию и затем best-effort уведомляет backend.
// Ошибка удалённого вызова только логируется.
func (s *Store) Logout(ctx context.Context) error {
	token := s.Token()
	err := s.clear(ctx)

	if token != "" && s.auth != nil {
		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
		defer cancel()
		if remoteErr := s.auth.Logout(remoteCtx, token); remoteErr != nil {
			s.logger.WithError(remoteErr).Warn("remote logout failed, local session already cleared")
		}
	}

	s.logger.Info("logged out")
	return err
}

// Expire принудительно завершает сессию после 401/403. Повторный вызов ничего не делает.
// Возвращает true, если сессия действительно была завершена этим вызовом.
// Сохранённые ключи удаляются, только если в хранилище лежит отклонённый токен:
// более новый вход, записанный другим процессом, не затрагивается.
func (s *Store) Expire(ctx context.Context, cause error) bool {
	s.mu.Lock()
	rejected := s.session.Token
	s.session = domain.Session{}
	s.mu.Unlock()
	if rejected == "" {
		return false
	}

	if err := s.forget(ctx, rejected); err != nil {
		s.logger.WithError(err).Warn("failed to clear persisted session")
	}
	s.logger.WithError(cause).Warn("session expired")
	return true
}

// Current возвращает копию текущей сессии.
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.session
	if s.session.User != nil {
		u := *s.session.User
		out.User = &u
	}
	return out
}

// Token возвращает текущий токен или пустую строку.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Authenticated сообщает, есть ли сейчас токен.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

func (s *Store) set(sess domain.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

// clear сначала сбрасывает состояние в памяти, затем удаляет сохранённые ключи.
func (s *Store) clear(ctx context.Context) error {
	s.set(domain.Session{})
	return errors.Join(
		s.durable.Delete(ctx, domain.KeyToken),
		s.durable.Delete(ctx, domain.KeyUser),
	)
}

// forget удаляет сохранённую сессию, если она принадлежит токену rejected.
func (s *Store) forget(ctx context.Context, rejected string) error {
	stored, err := s.durable.Get(ctx, domain.KeyToken)
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("read persisted token: %w", err)
	case stored != rejected:
		s.logger.Debug("persisted session belongs to a newer login, keeping it")
		return nil
	}
	return errors.Join(
		s.durable.Delete(ctx, domain.KeyToken),
		s.durable.Delete(ctx, domain.KeyUser),
	)
}

// tokenExpiry читает claim exp без проверки подписи. Для не-JWT токенов возвращает нулевое время.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.UTC()
}

var _ api.TokenSource = (*Store)(nil)
