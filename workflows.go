package authsome

import (
	"context"
	"errors"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/store"
	"github.com/xraph/authsome/token"
)

// workflowInput carries caller-supplied material into token effects.
type workflowInput struct {
	password  string
	firstName string
	lastName  string
}

// AcceptInviteInput is the input to AcceptInvite.
type AcceptInviteInput struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// AcceptInvite consumes an invite token: it creates the user if the bound
// email is unknown, creates an enabled account in the invite's
// organisation and establishment, and assigns the invite's roles. Any
// further bits on the token (validate email, terms, privacy) apply in
// the same transaction.
func (e *Engine) AcceptInvite(ctx context.Context, in *AcceptInviteInput) (*account.UserAccount, error) {
	var created *account.UserAccount
	_, err := e.ConsumeToken(ctx, in.Token, token.TypeInvite, in.Email, func(ctx context.Context, act *token.Action) error {
		acct, err := e.applyEffects(ctx, act, &workflowInput{
			password:  in.Password,
			firstName: in.FirstName,
			lastName:  in.LastName,
		})
		created = acct
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ValidateEmail consumes a validate-email token and marks the bound
// address as validated.
func (e *Engine) ValidateEmail(ctx context.Context, tokenSecret, email string) error {
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeValidateEmail, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{})
		return err
	})
	return err
}

// AcceptTerms consumes an accept-terms token. Declining returns
// ErrTermsNotAccepted and leaves the token usable.
func (e *Engine) AcceptTerms(ctx context.Context, tokenSecret, email string, accepted bool) error {
	if !accepted {
		return ErrTermsNotAccepted
	}
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeAcceptTerms, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{})
		return err
	})
	return err
}

// AcceptPrivacyPolicy consumes an accept-privacy-policy token. Declining
// returns ErrTermsNotAccepted and leaves the token usable.
func (e *Engine) AcceptPrivacyPolicy(ctx context.Context, tokenSecret, email string, accepted bool) error {
	if !accepted {
		return ErrTermsNotAccepted
	}
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeAcceptPrivacyPolicy, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{})
		return err
	})
	return err
}

// ResetPassword consumes a reset-password token and replaces the user's
// password credential.
func (e *Engine) ResetPassword(ctx context.Context, tokenSecret, email, newPassword string) error {
	if newPassword == "" {
		return errors.New("authsome: password is required")
	}
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeResetPassword, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{password: newPassword})
		return err
	})
	return err
}

// ChangePassword consumes a change-password token and replaces the user's
// password credential. The caller verifies the current password at
// issuance time, not here.
func (e *Engine) ChangePassword(ctx context.Context, tokenSecret, email, newPassword string) error {
	if newPassword == "" {
		return errors.New("authsome: password is required")
	}
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeChangePassword, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{password: newPassword})
		return err
	})
	return err
}

// ChangeEmail consumes a change-email token and switches the target user
// to the token's bound address. The presented email must be the new
// address. The validated flag is cleared unless the token also carries
// the validate-email bit.
func (e *Engine) ChangeEmail(ctx context.Context, tokenSecret, email string) error {
	_, err := e.ConsumeToken(ctx, tokenSecret, token.TypeChangeEmail, email, func(ctx context.Context, act *token.Action) error {
		_, err := e.applyEffects(ctx, act, &workflowInput{})
		return err
	})
	return err
}

// applyEffects applies the side effect of every workflow bit on the
// token, lowest bit first, so an invite runs before bits that need an
// existing user. It runs inside the store's consume transaction: every
// write goes through the transaction-scoped store the backend put on the
// context, so a later bit failing rolls back the earlier ones along with
// the consumed mark.
func (e *Engine) applyEffects(ctx context.Context, act *token.Action, in *workflowInput) (*account.UserAccount, error) {
	st := store.EffectStore(ctx, e.store)
	userID := act.UserID
	var created *account.UserAccount

	for _, bit := range act.Type.Bits() {
		switch bit {
		case token.TypeInvite:
			acct, uid, err := e.applyInvite(ctx, act, in)
			if err != nil {
				return nil, err
			}
			created, userID = acct, uid

		case token.TypeValidateEmail:
			// When the token also changes the email, the change-email
			// effect owns the flag: it must describe the address the
			// change lands on.
			if act.Type.Has(token.TypeChangeEmail) {
				continue
			}
			uid, err := e.resolveUser(ctx, act, userID)
			if err != nil {
				return nil, err
			}
			if err := st.SetUserEmailValidated(ctx, uid, true); err != nil {
				return nil, err
			}

		case token.TypeAcceptTerms:
			uid, err := e.resolveUser(ctx, act, userID)
			if err != nil {
				return nil, err
			}
			if err := st.SetUserAcceptedTerms(ctx, uid, true); err != nil {
				return nil, err
			}

		case token.TypeAcceptPrivacyPolicy:
			uid, err := e.resolveUser(ctx, act, userID)
			if err != nil {
				return nil, err
			}
			if err := st.SetUserAcceptedPrivacyPolicy(ctx, uid, true); err != nil {
				return nil, err
			}

		case token.TypeResetPassword, token.TypeChangePassword:
			if in.password == "" {
				return nil, errors.New("authsome: password is required")
			}
			uid, err := e.resolveUser(ctx, act, userID)
			if err != nil {
				return nil, err
			}
			if err := e.SetPassword(ctx, uid, in.password); err != nil {
				return nil, err
			}

		case token.TypeChangeEmail:
			uid, err := e.resolveUser(ctx, act, userID)
			if err != nil {
				return nil, err
			}
			if err := st.SetUserEmail(ctx, uid, act.Email); err != nil {
				return nil, err
			}
			if err := st.SetUserEmailValidated(ctx, uid, act.Type.Has(token.TypeValidateEmail)); err != nil {
				return nil, err
			}
		}
	}
	return created, nil
}

// applyInvite creates (or finds) the user behind the invite's email and
// materializes the invited membership.
func (e *Engine) applyInvite(ctx context.Context, act *token.Action, in *workflowInput) (*account.UserAccount, id.UserID, error) {
	st := store.EffectStore(ctx, e.store)
	u, err := st.GetUserByEmail(ctx, act.Email)
	switch {
	case errors.Is(err, account.ErrNotFound):
		now := e.now()
		u = &account.User{
			ID:        id.NewUserID(),
			Email:     act.Email,
			FirstName: in.firstName,
			LastName:  in.lastName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.CreateUser(ctx, u); err != nil {
			return nil, id.Nil, err
		}
	case err != nil:
		return nil, id.Nil, err
	}

	now := e.now()
	acct := &account.UserAccount{
		ID:              id.NewAccountID(),
		UserID:          u.ID,
		OrganisationID:  act.OrganisationID,
		EstablishmentID: act.EstablishmentID,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.CreateAccount(ctx, acct); err != nil {
		return nil, id.Nil, err
	}
	for _, roleID := range act.RoleIDs {
		if err := st.AssignRole(ctx, acct.ID, roleID); err != nil {
			return nil, id.Nil, err
		}
	}
	if in.password != "" {
		if err := e.SetPassword(ctx, u.ID, in.password); err != nil {
			return nil, id.Nil, err
		}
	}
	if e.plugins != nil {
		e.plugins.EmitAccountCreated(ctx, acct)
	}
	return acct, u.ID, nil
}

// resolveUser returns the token's target user, falling back to a lookup
// by the bound email.
func (e *Engine) resolveUser(ctx context.Context, act *token.Action, userID id.UserID) (id.UserID, error) {
	if !userID.IsNil() {
		return userID, nil
	}
	u, err := store.EffectStore(ctx, e.store).GetUserByEmail(ctx, act.Email)
	if err != nil {
		return id.Nil, err
	}
	return u.ID, nil
}
