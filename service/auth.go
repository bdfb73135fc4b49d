package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AnTengye/contractdesk/config"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken is returned for tokens that are malformed, expired or revoked
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents the JWT claims
type Claims struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role"`
	Organization string `json:"org,omitempty"`
	OrgRole      string `json:"org_role,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	identity *model.Identity
	hash     []byte
}

// AuthService exchanges credentials for signed tokens and resolves tokens back to identities
type AuthService struct {
	accounts    map[string]account
	secret      []byte
	ttl         time.Duration
	revocations RevocationList
	now         func() time.Time
}

// NewAuthService builds the credential exchange from configured users.
// Plain passwords are hashed here so only bcrypt hashes stay in memory.
func NewAuthService(cfg *config.Config, revocations RevocationList) (*AuthService, error) {
	return newAuthService(cfg, revocations, bcrypt.DefaultCost)
}

func newAuthService(cfg *config.Config, revocations RevocationList, cost int) (*AuthService, error) {
	if revocations == nil {
		revocations = NewMemoryRevocations()
	}

	s := &AuthService{
		accounts:    make(map[string]account, len(cfg.Users)),
		secret:      []byte(cfg.Auth.JWTSecret),
		ttl:         cfg.Auth.TokenTTL(),
		revocations: revocations,
		now:         time.Now,
	}

	for i := range cfg.Users {
		u := &cfg.Users[i]
		hash := []byte(u.PasswordHash)
		if len(hash) == 0 {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(u.Password), cost)
			if err != nil {
				return nil, fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
		}
		s.accounts[strings.ToLower(u.Email)] = account{identity: u.Identity(), hash: hash}
	}
	return s, nil
}

// SignIn checks creds and issues a token
func (s *AuthService) SignIn(ctx context.Context, creds session.Credentials) (*session.Grant, error) {
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok {
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(creds.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken(acc.identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	identity := *acc.identity
	return &session.Grant{Identity: &identity, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) generateToken(identity *model.Identity) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		Role:         string(identity.Role),
		Organization: identity.Organization,
		OrgRole:      string(identity.OrgRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Resolve returns the identity behind a token. Revoked tokens are invalid.
// Errors other than ErrInvalidToken come from the revocation backend.
func (s *AuthService) Resolve(ctx context.Context, tokenString string) (*model.Identity, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}
	orgRole, _ := model.ParseOrgRole(claims.OrgRole)
	return &model.Identity{
		ID:           claims.Subject,
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		Role:         role,
		Organization: claims.Organization,
		OrgRole:      orgRole,
	}, nil
}

// Resolver adapts Resolve for session initialization: an invalid token
// resolves to nobody rather than failing.
func (s *AuthService) Resolver(tokenString string) session.Resolver {
	return func(ctx context.Context) (*model.Identity, error) {
		if tokenString == "" {
			return nil, nil
		}
		identity, err := s.Resolve(ctx, tokenString)
		if errors.Is(err, ErrInvalidToken) {
			return nil, nil
		}
		return identity, err
	}
}

// SignOut revokes a token until it would have expired anyway.
// Tokens that are already invalid need no revocation.
func (s *AuthService) SignOut(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
