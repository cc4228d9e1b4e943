package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/repositories"
	"github.com/desertthunder/orbitune/internal/services"
	"github.com/desertthunder/orbitune/internal/shared"
)

// Persisted keys.
const (
	KeyCurrentUser = "currentUser"
	KeyLoggedIn    = "isLoggedIn"
)

const defaultLogoutTimeout = 5 * time.Second

// Backend authenticates against the server.
type Backend interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, email, password string) (*models.User, error)
	Logout(ctx context.Context) error
}

// Hydrator loads a fresh session's resources and owns its scheduled work.
type Hydrator interface {
	Hydrate(ctx context.Context, epoch uint64, sess models.Session)
	Cancel(epoch uint64)
	Shutdown()
}

// Epochs is the session epoch counter; resetting it empties the resource cache.
type Epochs interface {
	Epoch() uint64
	Reset() uint64
}

// AuthError is a failed login or registration.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrAuthFailed}
	}
	return []error{shared.ErrAuthFailed, e.Err}
}

func newAuthError(err error, fallback string) *AuthError {
	msg := services.ErrorMessage(err)
	if msg == "" {
		msg = fallback
	}
	return &AuthError{Message: msg, Err: err}
}

// Options tunes a [Store].
type Options struct {
	LogoutTimeout time.Duration
	Logger        *log.Logger
}

// Store owns the authenticated identity and its durable copy.
//
// Every state change runs under one lock. Hydration after login and the server-side logout run
// in the background; [Store.Wait] blocks until they finish.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	storage  repositories.Repository
	epochs   Epochs
	hydrator Hydrator
	session  models.Session
	err      string

	logoutTimeout time.Duration
	logger        *log.Logger
	wg            sync.WaitGroup
}

// New creates a logged-out store. hydrator may be nil.
func New(backend Backend, storage repositories.Repository, epochs Epochs, hydrator Hydrator, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = defaultLogoutTimeout
	}
	return &Store{
		backend:       backend,
		storage:       storage,
		epochs:        epochs,
		hydrator:      hydrator,
		logoutTimeout: opts.LogoutTimeout,
		logger:        opts.Logger,
	}
}

// Current returns the session. It is zero when logged out.
func (s *Store) Current() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// IsLoggedIn reports whether a session is established.
func (s *Store) IsLoggedIn() bool {
	return s.Current().IsAuthenticated
}

// Err returns the message of the latest failed action.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

func validateCredentials(email, password string) error {
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.Join(missing, " and "))
	}
	return nil
}

type authFunc func(ctx context.Context, email, password string) (*models.User, error)

func (s *Store) authenticate(ctx context.Context, do authFunc, email, password, fallback string) (models.Session, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		s.setErr(err.Error())
		return models.Session{}, err
	}
	s.setErr("")

	user, err := do(ctx, email, password)
	if err != nil {
		ae := newAuthError(err, fallback)
		s.logger.Warn(fallback, "email", email, "error", ae.Message)
		s.setErr(ae.Message)
		return models.Session{}, ae
	}
	return s.establish(ctx, *user), nil
}

// Login authenticates and starts a new session. Hydration starts in the background; Login does not wait for it.
func (s *Store) Login(ctx context.Context, email, password string) (models.Session, error) {
	return s.authenticate(ctx, s.backend.Login, email, password, "Login failed")
}

// Register creates an account and starts a session for it, exactly like [Store.Login].
func (s *Store) Register(ctx context.Context, email, password string) (models.Session, error) {
	return s.authenticate(ctx, s.backend.Register, email, password, "Registration failed")
}

func (s *Store) establish(ctx context.Context, user models.User) models.Session {
	s.mu.Lock()
	if s.hydrator != nil {
		s.hydrator.Cancel(s.epochs.Epoch())
	}
	epoch := s.epochs.Reset()
	sess := models.NewSession(user)
	s.session = sess
	if err := s.persist(ctx, sess); err != nil {
		s.logger.Warn("session not persisted", "error", err)
	}
	s.mu.Unlock()

	s.logger.Info("session started", "user", sess.UserID, "handle", sess.Handle())
	s.hydrate(ctx, epoch, sess)
	return sess
}

func (s *Store) persist(ctx context.Context, sess models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.storage.Save(ctx, map[string]string{
		KeyCurrentUser: string(raw),
		KeyLoggedIn:    "true",
	})
}

func (s *Store) hydrate(ctx context.Context, epoch uint64, sess models.Session) {
	if s.hydrator == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hydrator.Hydrate(ctx, epoch, sess)
	}()
}

// Logout clears the session, every cache slot and both persisted keys, then tells the server
// in the background. Server failures are logged only.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrator != nil {
		s.hydrator.Cancel(s.epochs.Epoch())
	}
	user := s.session.UserID
	s.session = models.Session{}
	s.err = ""
	s.epochs.Reset()
	err := s.storage.Remove(ctx, KeyCurrentUser, KeyLoggedIn)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("persisted session not removed", "error", err)
	}
	s.logger.Info("session ended", "user", user)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.logoutTimeout)
		defer cancel()
		if err := s.backend.Logout(ctx); err != nil {
			s.logger.Debug("server logout failed", "error", err)
		}
	}()
	return err
}

// Restore loads the persisted session, if any. Missing, partial or undecodable state counts
// as logged out; corrupted keys are removed best-effort.
func (s *Store) Restore(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.IsAuthenticated {
		return true
	}

	vals, err := s.storage.Load(ctx, KeyCurrentUser, KeyLoggedIn)
	if err != nil {
		s.logger.Debug("persisted session unreadable", "error", err)
		return false
	}

	raw, hasUser := vals[KeyCurrentUser]
	flag, hasFlag := vals[KeyLoggedIn]
	if !hasUser && !hasFlag {
		return false
	}

	var sess models.Session
	if !hasUser || flag != "true" || json.Unmarshal([]byte(raw), &sess) != nil || sess.UserID == "" {
		s.logger.Debug("discarding corrupted session state")
		if err := s.storage.Remove(ctx, KeyCurrentUser, KeyLoggedIn); err != nil {
			s.logger.Debug("corrupted session state not removed", "error", err)
		}
		return false
	}

	sess.IsAuthenticated = true
	s.session = sess
	return true
}

// Init restores a persisted session and, when one was found, starts hydrating it.
func (s *Store) Init(ctx context.Context) bool {
	if !s.Restore(ctx) {
		return false
	}
	s.hydrate(ctx, s.epochs.Epoch(), s.Current())
	return true
}

// Wait blocks until background hydration and logout calls have returned.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Teardown cancels all scheduled work and waits for background calls. Persisted state is kept.
func (s *Store) Teardown() {
	if s.hydrator != nil {
		s.hydrator.Shutdown()
	}
	s.wg.Wait()
}
