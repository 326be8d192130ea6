// Package local keeps credentials in the application database and issues HS256 tokens.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/internal/utils/jwt"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// Account stores the credentials for one subject.
type Account struct {
	types.BaseModel

	Email        string  `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null;column:password_hash" json:"-"`
	RefreshToken *string `gorm:"type:varchar(64);column:refresh_token" json:"-"`
}

// TableName overrides the default table name.
func (Account) TableName() string { return "auth_accounts" }

// Options configures token signing.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
}

// Provider implements identity.Provider on the auth_accounts table.
type Provider struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New creates a local provider.
func New(db *gorm.DB, opts Options) *Provider {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 10
	}
	return &Provider{db: db, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// SignIn checks the password and issues a new token pair.
func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	var account Account
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.Session{}, identity.ErrInvalidCredentials
		}
		return identity.Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return identity.Session{}, identity.ErrInvalidCredentials
	}

	return p.issue(ctx, account)
}

// Refresh rotates the token pair. A refresh token is accepted once.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	claims, err := jwt.VerifyToken(refreshToken, p.opts.RefreshSecret, jwt.TypeRefresh)
	if err != nil {
		return identity.Session{}, mapTokenError(err)
	}

	var account Account
	if err := p.db.WithContext(ctx).First(&account, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.Session{}, identity.ErrInvalidToken
		}
		return identity.Session{}, err
	}

	if account.RefreshToken == nil || *account.RefreshToken != fingerprint(refreshToken) {
		return identity.Session{}, identity.ErrInvalidToken
	}

	return p.issue(ctx, account)
}

// SignOut revokes the stored refresh token. Access tokens stay valid until they expire.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	subject, err := p.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", subject.ID).
		Update("refresh_token", nil).Error
}

// VerifyAccessToken validates the signature and expiry of an access token.
func (p *Provider) VerifyAccessToken(ctx context.Context, accessToken string) (identity.Subject, error) {
	claims, err := jwt.VerifyToken(accessToken, p.opts.AccessSecret, jwt.TypeAccess)
	if err != nil {
		return identity.Subject{}, mapTokenError(err)
	}
	return identity.Subject{ID: claims.UserID, Email: claims.Email}, nil
}

// CreateAccount stores a new credential. The email is lower-cased.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (identity.Subject, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return identity.Subject{}, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < identity.MinPasswordLength {
		return identity.Subject{}, identity.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return identity.Subject{}, identity.ErrWeakPassword
		}
		return identity.Subject{}, err
	}

	account := Account{Email: email, PasswordHash: string(hash)}
	if err := p.db.WithContext(ctx).Create(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return identity.Subject{}, identity.ErrAccountExists
		}
		return identity.Subject{}, err
	}

	return identity.Subject{ID: account.ID, Email: account.Email}, nil
}

// DeleteAccount removes a credential.
func (p *Provider) DeleteAccount(ctx context.Context, subjectID uuid.UUID) error {
	result := p.db.WithContext(ctx).Delete(&Account{}, "id = ?", subjectID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// SetPassword replaces the password hash for an existing account.
func (p *Provider) SetPassword(ctx context.Context, subjectID uuid.UUID, password string) error {
	if len(password) < identity.MinPasswordLength {
		return identity.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		return err
	}

	result := p.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", subjectID).
		Updates(map[string]interface{}{"password_hash": string(hash), "refresh_token": nil})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func (p *Provider) issue(ctx context.Context, account Account) (identity.Session, error) {
	now := p.now()

	access, expiresAt, err := jwt.Generate(account.ID, account.Email, jwt.TypeAccess, p.opts.AccessSecret, now, p.opts.AccessTTL)
	if err != nil {
		return identity.Session{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, _, err := jwt.Generate(account.ID, account.Email, jwt.TypeRefresh, p.opts.RefreshSecret, now, p.opts.RefreshTTL)
	if err != nil {
		return identity.Session{}, fmt.Errorf("sign refresh token: %w", err)
	}

	stored := fingerprint(refresh)
	if err := p.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Update("refresh_token", stored).Error; err != nil {
		return identity.Session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return identity.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Subject:      identity.Subject{ID: account.ID, Email: account.Email},
	}, nil
}

func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrExpiredToken) {
		return identity.ErrExpiredToken
	}
	return identity.ErrInvalidToken
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
