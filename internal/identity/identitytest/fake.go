// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aulavirtual/lms-server-go/internal/identity"
)

type account struct {
	subject  identity.Subject
	password string
}

// Fake is a concurrency-safe in-memory identity provider.
type Fake struct {
	mu       sync.Mutex
	accounts map[string]account
	tokens   map[string]identity.Subject
	refresh  map[string]identity.Subject

	// CreateErr and DeleteErr, when set, are returned by the matching calls.
	CreateErr error
	DeleteErr error
	Deleted   []uuid.UUID
}

var _ identity.Provider = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		accounts: map[string]account{},
		tokens:   map[string]identity.Subject{},
		refresh:  map[string]identity.Subject{},
	}
}

// AddAccount registers an account and returns a valid access token for it.
func (f *Fake) AddAccount(id uuid.UUID, email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	subject := identity.Subject{ID: id, Email: strings.ToLower(email)}
	f.accounts[subject.Email] = account{subject: subject, password: password}
	token := "token-" + id.String()
	f.tokens[token] = subject
	return token
}

func (f *Fake) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || acc.password != password {
		return identity.Session{}, identity.ErrInvalidCredentials
	}
	return f.issue(acc.subject), nil
}

func (f *Fake) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subject, ok := f.refresh[refreshToken]
	if !ok {
		return identity.Session{}, identity.ErrInvalidToken
	}
	delete(f.refresh, refreshToken)
	return f.issue(subject), nil
}

func (f *Fake) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tokens[accessToken]; !ok {
		return identity.ErrInvalidToken
	}
	delete(f.tokens, accessToken)
	return nil
}

func (f *Fake) VerifyAccessToken(ctx context.Context, accessToken string) (identity.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subject, ok := f.tokens[accessToken]
	if !ok {
		return identity.Subject{}, identity.ErrInvalidToken
	}
	return subject, nil
}

func (f *Fake) CreateAccount(ctx context.Context, email, password string) (identity.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return identity.Subject{}, f.CreateErr
	}
	if len(password) < identity.MinPasswordLength {
		return identity.Subject{}, identity.ErrWeakPassword
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := f.accounts[email]; exists {
		return identity.Subject{}, identity.ErrAccountExists
	}

	subject := identity.Subject{ID: uuid.New(), Email: email}
	f.accounts[email] = account{subject: subject, password: password}
	return subject, nil
}

func (f *Fake) DeleteAccount(ctx context.Context, subjectID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for email, acc := range f.accounts {
		if acc.subject.ID == subjectID {
			delete(f.accounts, email)
			f.Deleted = append(f.Deleted, subjectID)
			return nil
		}
	}
	return identity.ErrAccountNotFound
}

// HasAccount reports whether email is registered.
func (f *Fake) HasAccount(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.accounts[strings.ToLower(email)]
	return ok
}

func (f *Fake) issue(subject identity.Subject) identity.Session {
	access := "token-" + uuid.NewString()
	refresh := "refresh-" + uuid.NewString()
	f.tokens[access] = subject
	f.refresh[refresh] = subject
	return identity.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
		Subject:      subject,
	}
}
