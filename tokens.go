package authsome

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/token"
)

// IssueTokenRequest is the input to IssueToken.
type IssueTokenRequest struct {
	// Type is the workflow bitmask the token will authorize.
	Type token.Type `json:"type"`

	// Email is the address the token is bound to. For change-email
	// tokens this is the NEW address the user is switching to.
	Email string `json:"email"`

	// UserID targets an existing user. Required for password and email
	// changes; resolved from Email for password resets when absent.
	UserID id.UserID `json:"user_id,omitempty"`

	// CurrentPassword proves the caller knows the existing password.
	// Required for change-password tokens.
	CurrentPassword string `json:"current_password,omitempty"`

	// ExpiresInHours overrides the per-type lifetime policy when positive.
	ExpiresInHours int `json:"expires_in_hours,omitempty"`

	// RoleIDs, OrganisationID and EstablishmentID carry the membership
	// an invite creates on acceptance.
	RoleIDs         []id.RoleID `json:"role_ids,omitempty"`
	OrganisationID  string      `json:"organisation_id,omitempty"`
	EstablishmentID string      `json:"establishment_id,omitempty"`
}

// IssueToken creates, persists, and dispatches a single-use action token.
// The returned Action includes the opaque secret; delivery to the bound
// email happens asynchronously and never blocks issuance.
func (e *Engine) IssueToken(ctx context.Context, req *IssueTokenRequest) (*token.Action, error) {
	if !req.Type.Valid() {
		return nil, errors.New("authsome: token type is required")
	}
	if req.Email == "" {
		return nil, errors.New("authsome: token email is required")
	}
	email := account.NormalizeEmail(req.Email)

	userID := req.UserID
	switch {
	case req.Type.Has(token.TypeChangeEmail) && userID.IsNil():
		// The bound email is the new address, so the target user cannot
		// be resolved from it later.
		return nil, errors.New("authsome: change-email token requires user_id")
	case req.Type.Has(token.TypeChangePassword):
		if userID.IsNil() {
			return nil, errors.New("authsome: change-password token requires user_id")
		}
		// A password change is requested by a signed-in user; proving the
		// current password stops a hijacked session from rotating it.
		if err := e.VerifyPassword(ctx, userID, req.CurrentPassword); err != nil {
			return nil, err
		}
	case req.Type.Has(token.TypeResetPassword) && userID.IsNil():
		u, err := e.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		userID = u.ID
	}
	if req.Type.Has(token.TypeInvite) && req.OrganisationID == "" {
		return nil, errors.New("authsome: invite token requires organisation_id")
	}

	secret, err := newTokenSecret()
	if err != nil {
		return nil, fmt.Errorf("authsome: generate token: %w", err)
	}

	now := e.now()
	act := &token.Action{
		ID:              id.NewActionID(),
		Token:           secret,
		Type:            req.Type,
		Email:           email,
		UserID:          userID,
		RoleIDs:         req.RoleIDs,
		OrganisationID:  req.OrganisationID,
		EstablishmentID: req.EstablishmentID,
		CreatedAt:       now,
	}
	ttl := e.config.ttlFor(req.Type)
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}
	if ttl > 0 {
		deadline := now.Add(ttl)
		act.ExpiresAt = &deadline
	}

	if err := e.store.SaveAction(ctx, act); err != nil {
		return nil, fmt.Errorf("authsome: save token: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitTokenIssued(ctx, act)
	}
	e.dispatchToken(act)

	return act, nil
}

// dispatchToken hands the token to the notifier in the background.
// Delivery failures are logged, never surfaced to the issuer.
func (e *Engine) dispatchToken(act *token.Action) {
	if e.notifier == nil {
		return
	}
	go func() {
		if err := e.notifier.Send(context.Background(), act.Email, act.Type, act.Token); err != nil {
			e.logger.Warn("token delivery failed",
				slog.String("type", act.Type.String()),
				slog.String("action_id", act.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// ValidateToken checks a presented token without consuming it. It returns
// the internal failure (token.ErrNotFound, ErrTypeMismatch,
// token.ErrConsumed, ErrTokenExpired, ErrEmailMismatch) so callers can
// log why; map through PublicError before exposing the result.
func (e *Engine) ValidateToken(ctx context.Context, secret string, want token.Type, email string) (*token.Action, error) {
	act, err := e.store.FindActionByToken(ctx, secret)
	if err != nil {
		return nil, err
	}
	if !act.Type.Has(want) {
		e.logTokenRejection(act, "type mismatch")
		return nil, ErrTypeMismatch
	}
	if act.IsConsumed() {
		e.logTokenRejection(act, "already consumed")
		return nil, token.ErrConsumed
	}
	if act.Expired(e.now()) {
		e.logTokenRejection(act, "expired")
		return nil, ErrTokenExpired
	}
	if act.Email != account.NormalizeEmail(email) {
		e.logTokenRejection(act, "email mismatch")
		return nil, ErrEmailMismatch
	}
	return act, nil
}

// ConsumeToken validates the token and then atomically marks it consumed
// while running effect in the same transactional boundary. If effect
// fails, the token stays usable.
func (e *Engine) ConsumeToken(ctx context.Context, secret string, want token.Type, email string, effect func(ctx context.Context, act *token.Action) error) (*token.Action, error) {
	act, err := e.ValidateToken(ctx, secret, want, email)
	if err != nil {
		return nil, err
	}
	err = e.store.ConsumeAction(ctx, secret, e.now(), func(ctx context.Context) error {
		return effect(ctx, act)
	})
	if err != nil {
		return nil, err
	}
	if e.plugins != nil {
		e.plugins.EmitTokenConsumed(ctx, act)
	}
	return act, nil
}

func (e *Engine) logTokenRejection(act *token.Action, reason string) {
	e.logger.Warn("token rejected",
		slog.String("action_id", act.ID.String()),
		slog.String("type", act.Type.String()),
		slog.String("reason", reason),
	)
}

// newTokenSecret returns a 256-bit random secret in URL-safe base64.
func newTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
