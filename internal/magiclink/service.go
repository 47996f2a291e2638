// Package magiclink issues and redeems single-use login tokens embedded in
// notification deep links. A token is an opaque 256-bit random string; all
// context (user, role, destination) is server-side state keyed by it, so a
// leaked token reveals nothing without a store lookup.
package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/repo"
)

// ErrInvalidToken covers missing, already-used and expired tokens alike.
// Callers must not surface which case occurred.
var ErrInvalidToken = errors.New("magic token invalid")

type Service struct {
	tokens     repo.TokenRepository
	defaultTTL time.Duration
	now        func() time.Time
}

func New(tokens repo.TokenRepository, defaultTTL time.Duration) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("tokens repository must not be nil")
	}
	if defaultTTL <= 0 {
		return nil, errors.New("defaultTTL must be > 0")
	}
	return &Service{
		tokens:     tokens,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

type GenerateParams struct {
	UserID    string
	UserEmail string
	UserRole  string
	DestType  model.DestinationType
	DestID    string
	Extra     map[string]string
	// TTL of zero means the service default.
	TTL time.Duration
}

// Generate creates and persists a token record, returning the opaque token
// string to embed in a link.
func (s *Service) Generate(ctx context.Context, p GenerateParams) (string, error) {
	if p.UserID == "" {
		return "", errors.New("user id must not be empty")
	}

	ttl := p.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now().UTC()
	rec := &model.MagicToken{
		Token:       token,
		UserID:      p.UserID,
		UserEmail:   p.UserEmail,
		UserRole:    p.UserRole,
		DestType:    p.DestType,
		DestID:      p.DestID,
		ExtraParams: p.Extra,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := s.tokens.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	return token, nil
}

// Validate is the non-consuming preflight check.
func (s *Service) Validate(ctx context.Context, token string) (*model.MagicToken, error) {
	rec, err := s.tokens.Find(ctx, token)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !rec.Valid(s.now()) {
		return nil, ErrInvalidToken
	}
	return rec, nil
}

// Consume redeems a token. At most one call ever succeeds per token; the
// atomicity lives in the repository's conditional update.
func (s *Service) Consume(ctx context.Context, token string) (*model.MagicToken, error) {
	rec, err := s.tokens.Consume(ctx, token, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PurgeExpired removes used and expired token rows. Correctness never
// depends on it running; expiry is re-checked on every read.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

// ResolveDestination maps a consumed token's destination descriptor to an
// application route. Pure function. Drawing and drawing-review destinations
// share one URL shape; unknown types land on the dashboard.
func ResolveDestination(rec *model.MagicToken) string {
	extra := func(key string) string {
		if rec.ExtraParams == nil {
			return ""
		}
		return rec.ExtraParams[key]
	}

	switch rec.DestType {
	case model.DestProject:
		return "/projects/" + rec.DestID
	case model.DestDrawing, model.DestDrawingReview:
		return fmt.Sprintf("/projects/%s/drawing/%s", extra("project_id"), rec.DestID)
	case model.DestImageReview:
		return fmt.Sprintf("/projects/%s/image/%s", extra("project_id"), rec.DestID)
	case model.DestComment:
		return fmt.Sprintf("/projects/%s/drawing/%s#comment-%s",
			extra("project_id"), extra("drawing_id"), rec.DestID)
	case model.DestPendingApprovals:
		return "/approvals"
	default:
		return "/dashboard"
	}
}
