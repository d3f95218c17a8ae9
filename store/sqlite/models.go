package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/credential"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
	"github.com/xraph/authsome/token"
)

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:authsome_roles"`
	ID              string    `grove:"id,pk"`
	OrganisationID  string    `grove:"organisation_id,notnull"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	Claims          string    `grove:"claims"` // JSON text
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) (*roleModel, error) {
	claims, err := json.Marshal(r.Claims)
	if err != nil {
		return nil, fmt.Errorf("marshal role claims: %w", err)
	}
	return &roleModel{
		ID:             r.ID.String(),
		OrganisationID: r.OrganisationID,
		Name:           r.Name,
		Description:    r.Description,
		Claims:         string(claims),
		IsSystem:       r.IsSystem,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func roleFromModel(m *roleModel) (*role.Role, error) {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var claims []claim.Claim
	if m.Claims != "" {
		if err := json.Unmarshal([]byte(m.Claims), &claims); err != nil {
			return nil, fmt.Errorf("unmarshal role claims: %w", err)
		}
	}
	return &role.Role{
		ID:             rid,
		OrganisationID: m.OrganisationID,
		Name:           m.Name,
		Description:    m.Description,
		Claims:         claims,
		IsSystem:       m.IsSystem,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// User model
// ──────────────────────────────────────────────────

type userModel struct {
	grove.BaseModel       `grove:"table:authsome_users"`
	ID                    string    `grove:"id,pk"`
	Email                 string    `grove:"email,notnull"`
	FirstName             string    `grove:"first_name"`
	LastName              string    `grove:"last_name"`
	EmailValidated        bool      `grove:"email_validated,notnull"`
	AcceptedTerms         bool      `grove:"accepted_terms,notnull"`
	AcceptedPrivacyPolicy bool      `grove:"accepted_privacy_policy,notnull"`
	CreatedAt             time.Time `grove:"created_at,notnull"`
	UpdatedAt             time.Time `grove:"updated_at,notnull"`
}

func userToModel(u *account.User) *userModel {
	return &userModel{
		ID:                    u.ID.String(),
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		EmailValidated:        u.EmailValidated,
		AcceptedTerms:         u.AcceptedTerms,
		AcceptedPrivacyPolicy: u.AcceptedPrivacyPolicy,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func userFromModel(m *userModel) *account.User {
	uid, _ := id.ParseUserID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &account.User{
		ID:                    uid,
		Email:                 m.Email,
		FirstName:             m.FirstName,
		LastName:              m.LastName,
		EmailValidated:        m.EmailValidated,
		AcceptedTerms:         m.AcceptedTerms,
		AcceptedPrivacyPolicy: m.AcceptedPrivacyPolicy,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Account model
// ──────────────────────────────────────────────────

type accountModel struct {
	grove.BaseModel `grove:"table:authsome_accounts"`
	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id,notnull"`
	OrganisationID  string    `grove:"organisation_id,notnull"`
	EstablishmentID string    `grove:"establishment_id"`
	Enabled         bool      `grove:"enabled,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func accountToModel(a *account.UserAccount) *accountModel {
	return &accountModel{
		ID:              a.ID.String(),
		UserID:          a.UserID.String(),
		OrganisationID:  a.OrganisationID,
		EstablishmentID: a.EstablishmentID,
		Enabled:         a.Enabled,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func accountFromModel(m *accountModel) *account.UserAccount {
	aid, _ := id.ParseAccountID(m.ID) //nolint:errcheck // stored IDs are always valid
	uid, _ := id.ParseUserID(m.UserID) //nolint:errcheck
	return &account.UserAccount{
		ID:              aid,
		UserID:          uid,
		OrganisationID:  m.OrganisationID,
		EstablishmentID: m.EstablishmentID,
		Enabled:         m.Enabled,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Account-Role junction model
// ──────────────────────────────────────────────────

type accountRoleModel struct {
	grove.BaseModel `grove:"table:authsome_account_roles"`
	AccountID       string `grove:"account_id,pk"`
	RoleID          string `grove:"role_id,pk"`
}

// ──────────────────────────────────────────────────
// Credential model
// ──────────────────────────────────────────────────

type credentialModel struct {
	grove.BaseModel `grove:"table:authsome_credentials"`
	UserID          string    `grove:"user_id,pk"`
	Kind            string    `grove:"kind,pk"`
	Hash            string    `grove:"hash,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func credentialToModel(c *credential.Credential) *credentialModel {
	return &credentialModel{
		UserID:    c.UserID.String(),
		Kind:      string(c.Kind),
		Hash:      c.Hash,
		UpdatedAt: c.UpdatedAt,
	}
}

func credentialFromModel(m *credentialModel) *credential.Credential {
	uid, _ := id.ParseUserID(m.UserID) //nolint:errcheck // stored IDs are always valid
	return &credential.Credential{
		UserID:    uid,
		Kind:      credential.Kind(m.Kind),
		Hash:      m.Hash,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Action token model
// ──────────────────────────────────────────────────

type actionModel struct {
	grove.BaseModel `grove:"table:authsome_actions"`
	ID              string     `grove:"id,pk"`
	Token           string     `grove:"token,notnull"`
	Type            uint32     `grove:"type,notnull"`
	Email           string     `grove:"email,notnull"`
	UserID          *string    `grove:"user_id"`
	RoleIDs         string     `grove:"role_ids"` // JSON text
	OrganisationID  string     `grove:"organisation_id"`
	EstablishmentID string     `grove:"establishment_id"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	ConsumedAt      *time.Time `grove:"consumed_at"`
}

func actionToModel(a *token.Action) (*actionModel, error) {
	roleIDs := make([]string, 0, len(a.RoleIDs))
	for _, rid := range a.RoleIDs {
		roleIDs = append(roleIDs, rid.String())
	}
	encoded, err := json.Marshal(roleIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal action role ids: %w", err)
	}
	m := &actionModel{
		ID:              a.ID.String(),
		Token:           a.Token,
		Type:            uint32(a.Type),
		Email:           a.Email,
		RoleIDs:         string(encoded),
		OrganisationID:  a.OrganisationID,
		EstablishmentID: a.EstablishmentID,
		CreatedAt:       a.CreatedAt,
		ExpiresAt:       a.ExpiresAt,
		ConsumedAt:      a.ConsumedAt,
	}
	if !a.UserID.IsNil() {
		s := a.UserID.String()
		m.UserID = &s
	}
	return m, nil
}

func actionFromModel(m *actionModel) (*token.Action, error) {
	aid, _ := id.ParseActionID(m.ID) //nolint:errcheck // stored IDs are always valid
	a := &token.Action{
		ID:              aid,
		Token:           m.Token,
		Type:            token.Type(m.Type),
		Email:           m.Email,
		OrganisationID:  m.OrganisationID,
		EstablishmentID: m.EstablishmentID,
		CreatedAt:       m.CreatedAt,
		ExpiresAt:       m.ExpiresAt,
		ConsumedAt:      m.ConsumedAt,
	}
	if m.UserID != nil {
		uid, err := id.ParseUserID(*m.UserID)
		if err == nil {
			a.UserID = uid
		}
	}
	if m.RoleIDs != "" {
		var roleIDs []string
		if err := json.Unmarshal([]byte(m.RoleIDs), &roleIDs); err != nil {
			return nil, fmt.Errorf("unmarshal action role ids: %w", err)
		}
		for _, rid := range roleIDs {
			parsed, err := id.ParseRoleID(rid)
			if err == nil {
				a.RoleIDs = append(a.RoleIDs, parsed)
			}
		}
	}
	return a, nil
}
