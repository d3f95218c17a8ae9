package authsome

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/store"
	"github.com/xraph/authsome/token"
)

func TestIssueTokenValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *IssueTokenRequest
	}{
		{"missing type", &IssueTokenRequest{Email: "alice@example.com"}},
		{"missing email", &IssueTokenRequest{Type: token.TypeValidateEmail}},
		{"change-email without user", &IssueTokenRequest{Type: token.TypeChangeEmail, Email: "new@example.com"}},
		{"change-password without user", &IssueTokenRequest{Type: token.TypeChangePassword, Email: "alice@example.com"}},
		{"invite without organisation", &IssueTokenRequest{Type: token.TypeInvite, Email: "bob@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.eng.IssueToken(ctx, tt.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIssueTokenResolvesUserForReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeResetPassword,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if act.UserID != f.user.ID {
		t.Fatalf("user = %s, want %s", act.UserID, f.user.ID)
	}

	_, err = f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeResetPassword,
		Email: "nobody@example.com",
	})
	if !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("err = %v, want account.ErrNotFound", err)
	}
}

func TestIssueTokenExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	tests := []struct {
		name string
		req  *IssueTokenRequest
		want time.Duration // 0 means never expires
	}{
		{
			"reset-password",
			&IssueTokenRequest{Type: token.TypeResetPassword, Email: "alice@example.com"},
			2 * time.Hour,
		},
		{
			"validate-email never expires",
			&IssueTokenRequest{Type: token.TypeValidateEmail, Email: "alice@example.com"},
			0,
		},
		{
			"invite",
			&IssueTokenRequest{Type: token.TypeInvite, Email: "bob@example.com", OrganisationID: "org-1"},
			7 * 24 * time.Hour,
		},
		{
			// The expiring bit wins over the never-expiring one.
			"invite with validate-email",
			&IssueTokenRequest{Type: token.TypeInvite | token.TypeValidateEmail, Email: "bob@example.com", OrganisationID: "org-1"},
			7 * 24 * time.Hour,
		},
		{
			"explicit override",
			&IssueTokenRequest{Type: token.TypeResetPassword, Email: "alice@example.com", ExpiresInHours: 48},
			48 * time.Hour,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := f.eng.IssueToken(ctx, tt.req)
			if err != nil {
				t.Fatalf("IssueToken: %v", err)
			}
			if tt.want == 0 {
				if act.ExpiresAt != nil {
					t.Fatalf("expires = %v, want never", act.ExpiresAt)
				}
				return
			}
			if act.ExpiresAt == nil || !act.ExpiresAt.Equal(now.Add(tt.want)) {
				t.Fatalf("expires = %v, want %v", act.ExpiresAt, now.Add(tt.want))
			}
		})
	}
}

func TestIssueTokenNormalizesEmail(t *testing.T) {
	f := newFixture(t)

	act, err := f.eng.IssueToken(context.Background(), &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "  Alice@Example.COM ",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if act.Email != "alice@example.com" {
		t.Fatalf("email = %q, want normalized", act.Email)
	}
}

type channelNotifier struct{ sent chan string }

func (n *channelNotifier) Send(_ context.Context, email string, _ token.Type, _ string) error {
	n.sent <- email
	return nil
}

func TestIssueTokenDispatchesNotifier(t *testing.T) {
	notifier := &channelNotifier{sent: make(chan string, 1)}
	f := newFixture(t, WithNotifier(notifier))

	if _, err := f.eng.IssueToken(context.Background(), &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	select {
	case email := <-notifier.sent:
		if email != "alice@example.com" {
			t.Fatalf("delivered to %q", email)
		}
	case <-time.After(time.Second):
		t.Fatal("notifier never called")
	}
}

func TestValidateTokenFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:   token.TypeResetPassword,
		Email:  "alice@example.com",
		UserID: f.user.ID,
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := f.eng.ValidateToken(ctx, "no-such-token", token.TypeResetPassword, "alice@example.com"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("unknown secret: err = %v, want token.ErrNotFound", err)
	}
	if _, err := f.eng.ValidateToken(ctx, act.Token, token.TypeChangeEmail, "alice@example.com"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("wrong type: err = %v, want ErrTypeMismatch", err)
	}
	if _, err := f.eng.ValidateToken(ctx, act.Token, token.TypeResetPassword, "mallory@example.com"); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("wrong email: err = %v, want ErrEmailMismatch", err)
	}

	// Email binding is case-insensitive.
	if _, err := f.eng.ValidateToken(ctx, act.Token, token.TypeResetPassword, "ALICE@example.com"); err != nil {
		t.Fatalf("mixed-case email: %v", err)
	}

	now = now.Add(3 * time.Hour)
	if _, err := f.eng.ValidateToken(ctx, act.Token, token.TypeResetPassword, "alice@example.com"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired: err = %v, want ErrTokenExpired", err)
	}
}

func TestPublicErrorCollapsesTokenFailures(t *testing.T) {
	for _, err := range []error{
		token.ErrNotFound,
		token.ErrConsumed,
		ErrTokenExpired,
		ErrEmailMismatch,
		ErrTypeMismatch,
	} {
		if got := PublicError(err); !errors.Is(got, ErrTokenInvalid) {
			t.Fatalf("PublicError(%v) = %v, want ErrTokenInvalid", err, got)
		}
	}
	if got := PublicError(ErrAccessDenied); !errors.Is(got, ErrAccessDenied) {
		t.Fatalf("non-token error should pass through, got %v", got)
	}
	if got := PublicError(nil); got != nil {
		t.Fatalf("PublicError(nil) = %v", got)
	}
}

func TestConsumeTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if err := f.eng.ValidateEmail(ctx, act.Token, "alice@example.com"); err != nil {
		t.Fatalf("ValidateEmail: %v", err)
	}
	u, err := f.store.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.EmailValidated {
		t.Fatal("email should be validated")
	}

	err = f.eng.ValidateEmail(ctx, act.Token, "alice@example.com")
	if !errors.Is(err, token.ErrConsumed) {
		t.Fatalf("second use: err = %v, want token.ErrConsumed", err)
	}
}

func TestConsumeTokenEffectFailureKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	boom := errors.New("boom")
	_, err = f.eng.ConsumeToken(ctx, act.Token, token.TypeValidateEmail, "alice@example.com",
		func(context.Context, *token.Action) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want effect error", err)
	}

	// The failed effect must not burn the token.
	if err := f.eng.ValidateEmail(ctx, act.Token, "alice@example.com"); err != nil {
		t.Fatalf("retry after failed effect: %v", err)
	}
}

func TestConsumeTokenEffectFailureRollsBackWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	boom := errors.New("boom")
	_, err = f.eng.ConsumeToken(ctx, act.Token, token.TypeValidateEmail, "alice@example.com",
		func(ctx context.Context, _ *token.Action) error {
			st := store.EffectStore(ctx, f.store)
			if err := st.SetUserEmailValidated(ctx, f.user.ID, true); err != nil {
				return err
			}
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want effect error", err)
	}

	// The write before the failure must roll back with the mark.
	u, err := f.store.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.EmailValidated {
		t.Fatal("partial effect survived a failed consume")
	}
	if _, err := f.eng.ValidateToken(ctx, act.Token, token.TypeValidateEmail, "alice@example.com"); err != nil {
		t.Fatalf("token should stay usable: %v", err)
	}
}

func TestAcceptInviteFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Role assignment is the last invite step; deleting the role after
	// issuance makes it fail once the user and account already exist.
	doomed := &role.Role{ID: id.NewRoleID(), OrganisationID: "org-1", Name: "doomed"}
	if err := f.store.CreateRole(ctx, doomed); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:           token.TypeInvite,
		Email:          "dave@example.com",
		RoleIDs:        []id.RoleID{doomed.ID},
		OrganisationID: "org-1",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := f.store.DeleteRole(ctx, doomed.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	_, err = f.eng.AcceptInvite(ctx, &AcceptInviteInput{
		Token: act.Token,
		Email: "dave@example.com",
	})
	if !errors.Is(err, role.ErrNotFound) {
		t.Fatalf("err = %v, want role.ErrNotFound", err)
	}

	// No half-created user or account, and the token is still usable, so
	// a retry cannot collide with leftovers from the failed attempt.
	if _, err := f.store.GetUserByEmail(ctx, "dave@example.com"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("user should not persist, got %v", err)
	}
	if err := f.store.CreateRole(ctx, doomed); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	acct, err := f.eng.AcceptInvite(ctx, &AcceptInviteInput{
		Token: act.Token,
		Email: "dave@example.com",
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if acct.OrganisationID != "org-1" {
		t.Fatalf("organisation = %q, want org-1", acct.OrganisationID)
	}
}

func TestResetPasswordWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeResetPassword,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if err := f.eng.ResetPassword(ctx, act.Token, "alice@example.com", ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if err := f.eng.ResetPassword(ctx, act.Token, "alice@example.com", "n3w-pass"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := f.eng.VerifyPassword(ctx, f.user.ID, "n3w-pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
}

func TestAcceptInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:            token.TypeInvite,
		Email:           "bob@example.com",
		RoleIDs:         []id.RoleID{f.role.ID},
		OrganisationID:  "org-1",
		EstablishmentID: "est-2",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	acct, err := f.eng.AcceptInvite(ctx, &AcceptInviteInput{
		Token:     act.Token,
		Email:     "bob@example.com",
		Password:  "welcome1",
		FirstName: "Bob",
		LastName:  "Jones",
	})
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if !acct.Enabled {
		t.Fatal("invited account should be enabled")
	}
	if acct.OrganisationID != "org-1" || acct.EstablishmentID != "est-2" {
		t.Fatalf("unexpected placement %+v", acct)
	}

	u, err := f.store.GetUserByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u.FirstName != "Bob" || u.LastName != "Jones" {
		t.Fatalf("unexpected user %+v", u)
	}
	if acct.UserID != u.ID {
		t.Fatalf("account user = %s, want %s", acct.UserID, u.ID)
	}

	roleIDs, err := f.store.ListAccountRoles(ctx, acct.ID)
	if err != nil {
		t.Fatalf("ListAccountRoles: %v", err)
	}
	if len(roleIDs) != 1 || roleIDs[0] != f.role.ID {
		t.Fatalf("roles = %v, want [%s]", roleIDs, f.role.ID)
	}

	if err := f.eng.VerifyPassword(ctx, u.ID, "welcome1"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}

	// The invite is single-use.
	_, err = f.eng.AcceptInvite(ctx, &AcceptInviteInput{Token: act.Token, Email: "bob@example.com"})
	if !errors.Is(PublicError(err), ErrTokenInvalid) {
		t.Fatalf("second accept: err = %v, want ErrTokenInvalid", err)
	}
}

func TestAcceptInviteExistingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:           token.TypeInvite,
		Email:          "alice@example.com",
		OrganisationID: "org-2",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	acct, err := f.eng.AcceptInvite(ctx, &AcceptInviteInput{
		Token: act.Token,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if acct.UserID != f.user.ID {
		t.Fatalf("existing user should be reused, got %s", acct.UserID)
	}
	if acct.OrganisationID != "org-2" {
		t.Fatalf("organisation = %q, want org-2", acct.OrganisationID)
	}
}

func TestAcceptInviteWithOnboardingBits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:           token.TypeInvite | token.TypeValidateEmail | token.TypeAcceptTerms | token.TypeAcceptPrivacyPolicy,
		Email:          "carol@example.com",
		OrganisationID: "org-1",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := f.eng.AcceptInvite(ctx, &AcceptInviteInput{
		Token: act.Token,
		Email: "carol@example.com",
	}); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}

	u, err := f.store.GetUserByEmail(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !u.EmailValidated || !u.AcceptedTerms || !u.AcceptedPrivacyPolicy {
		t.Fatalf("onboarding flags not applied: %+v", u)
	}
}

func TestAcceptTermsDeclined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeAcceptTerms,
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	err = f.eng.AcceptTerms(ctx, act.Token, "alice@example.com", false)
	if !errors.Is(err, ErrTermsNotAccepted) {
		t.Fatalf("declined: err = %v, want ErrTermsNotAccepted", err)
	}

	// Declining must not burn the token.
	if err := f.eng.AcceptTerms(ctx, act.Token, "alice@example.com", true); err != nil {
		t.Fatalf("accept after decline: %v", err)
	}
	u, err := f.store.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.AcceptedTerms {
		t.Fatal("terms should be accepted")
	}
}

func TestChangeEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First validate the current address so the reset is observable.
	if err := f.store.SetUserEmailValidated(ctx, f.user.ID, true); err != nil {
		t.Fatalf("SetUserEmailValidated: %v", err)
	}

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:   token.TypeChangeEmail,
		Email:  "alice.new@example.com",
		UserID: f.user.ID,
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// The presented email must be the new address.
	err = f.eng.ChangeEmail(ctx, act.Token, "alice@example.com")
	if !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("old address: err = %v, want ErrEmailMismatch", err)
	}

	if err := f.eng.ChangeEmail(ctx, act.Token, "alice.new@example.com"); err != nil {
		t.Fatalf("ChangeEmail: %v", err)
	}

	u, err := f.store.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Email != "alice.new@example.com" {
		t.Fatalf("email = %q, want new address", u.Email)
	}
	if u.EmailValidated {
		t.Fatal("validated flag should reset on a bare change-email")
	}
}

func TestChangeEmailWithValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:   token.TypeChangeEmail | token.TypeValidateEmail,
		Email:  "alice.new@example.com",
		UserID: f.user.ID,
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if err := f.eng.ChangeEmail(ctx, act.Token, "alice.new@example.com"); err != nil {
		t.Fatalf("ChangeEmail: %v", err)
	}

	u, err := f.store.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Email != "alice.new@example.com" || !u.EmailValidated {
		t.Fatalf("clicking the change link should validate the new address, got %+v", u)
	}
}

func TestChangePasswordWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.eng.SetPassword(ctx, f.user.ID, "old-pass"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	// Issuance proves the current password.
	_, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:            token.TypeChangePassword,
		Email:           "alice@example.com",
		UserID:          f.user.ID,
		CurrentPassword: "wrong",
	})
	if !errors.Is(err, credential.ErrMismatch) {
		t.Fatalf("wrong current password: err = %v, want credential.ErrMismatch", err)
	}

	act, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:            token.TypeChangePassword,
		Email:           "alice@example.com",
		UserID:          f.user.ID,
		CurrentPassword: "old-pass",
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if err := f.eng.ChangePassword(ctx, act.Token, "alice@example.com", "new-pass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if err := f.eng.VerifyPassword(ctx, f.user.ID, "new-pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
}

func TestPurgeExpiredActions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if _, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeResetPassword,
		Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	// A never-expiring token survives any purge.
	if _, err := f.eng.IssueToken(ctx, &IssueTokenRequest{
		Type:  token.TypeValidateEmail,
		Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	purged, err := f.store.PurgeExpiredActions(ctx, now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpiredActions: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
}
