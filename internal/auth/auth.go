// Package auth guards the wallet HTTP API with a static bearer token.
//
// The wallet holds one session, so there is a single operator identity.
// An empty token disables authentication.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"PasskeyWallet/pkg/logger"
)

// Common errors returned by the authenticator.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Mode reports whether requests are checked.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeToken    Mode = "token"
)

// Subject is the authenticated caller attached to the request context.
type Subject struct {
	Name string
}

// Service validates Authorization headers.
type Service struct {
	mode   Mode
	digest [sha256.Size]byte
	audit  *slog.Logger
}

// NewService returns a token authenticator. An empty token disables checks.
func NewService(token string) *Service {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Service{mode: ModeDisabled, audit: logger.Audit()}
	}
	return &Service{mode: ModeToken, digest: sha256.Sum256([]byte(token)), audit: logger.Audit()}
}

// Mode returns the active mode.
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest checks an Authorization header value.
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	if s.Mode() == ModeDisabled {
		return &Subject{Name: "anonymous"}, nil
	}
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
		got := sha256.Sum256([]byte(strings.TrimSpace(token)))
	if subtle.ConstantTimeCompare(got[:], s.digest[:]) != 1 {
		return nil, ErrInvalidToken
	}
	return &Subject{Name: "operator"}, nil
}
