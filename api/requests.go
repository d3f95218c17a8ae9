package api

// ──────────────────────────────────────────────────
// Authorization requests
// ──────────────────────────────────────────────────

// AuthorizeRequest is the request body for an authorization check.
type AuthorizeRequest struct {
	AccountID string `json:"account_id" description:"Acting account identifier"`
	Action    string `json:"action" description:"Requested action (e.g. read, update)"`
	Resource  string `json:"resource" description:"Target resource name"`
}

// BatchAuthorizeRequest contains multiple checks.
type BatchAuthorizeRequest struct {
	Checks []AuthorizeRequest `json:"checks" description:"List of authorization checks"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	OrganisationID string   `json:"organisation_id,omitempty" description:"Owning organisation (empty for global roles)"`
	Name           string   `json:"name" description:"Role name, unique per organisation"`
	Description    string   `json:"description,omitempty" description:"Human-readable description"`
	Claims         []string `json:"claims,omitempty" description:"Claims in action:scope:resource form"`
	IsSystem       bool     `json:"is_system,omitempty" description:"System role flag"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Name        string `json:"name,omitempty" description:"Role name"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
}

// SetRoleClaimsRequest replaces a role's claim set.
type SetRoleClaimsRequest struct {
	Claims []string `json:"claims" description:"Claims in action:scope:resource form"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	OrganisationID string `query:"organisation_id" description:"Filter by organisation"`
	Search         string `query:"search" description:"Search by name"`
	Limit          int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset         int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// User and account requests
// ──────────────────────────────────────────────────

// CreateUserRequest is the body for creating a user.
type CreateUserRequest struct {
	Email     string `json:"email" description:"Email address, unique across users"`
	FirstName string `json:"first_name,omitempty" description:"First name"`
	LastName  string `json:"last_name,omitempty" description:"Last name"`
	Password  string `json:"password,omitempty" description:"Initial password"`
}

// GetUserRequest is the path parameter for getting a user.
type GetUserRequest struct {
	UserID string `path:"userId" description:"User ID"`
}

// CreateAccountRequest is the body for creating an account.
type CreateAccountRequest struct {
	UserID          string `json:"user_id" description:"Owning user ID"`
	OrganisationID  string `json:"organisation_id" description:"Organisation the account belongs to"`
	EstablishmentID string `json:"establishment_id,omitempty" description:"Establishment within the organisation"`
}

// GetAccountRequest is the path parameter for getting an account.
type GetAccountRequest struct {
	AccountID string `path:"accountId" description:"Account ID"`
}

// ListAccountsRequest holds query parameters for listing accounts.
type ListAccountsRequest struct {
	UserID          string `query:"user_id" description:"Filter by user"`
	OrganisationID  string `query:"organisation_id" description:"Filter by organisation"`
	EstablishmentID string `query:"establishment_id" description:"Filter by establishment"`
	Enabled         string `query:"enabled" description:"Filter by enabled status (true/false)"`
	Limit           int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset          int    `query:"offset" description:"Results to skip"`
}

// SetAccountEnabledRequest is the body for enabling or disabling an account.
type SetAccountEnabledRequest struct {
	Enabled bool `json:"enabled" description:"Target enabled state"`
}

// AssignRoleRequest is the body for assigning a role to an account.
type AssignRoleRequest struct {
	RoleID string `json:"role_id" description:"Role ID to assign"`
}

// ──────────────────────────────────────────────────
// Token requests
// ──────────────────────────────────────────────────

// IssueTokenRequest is the body for issuing an action token.
type IssueTokenRequest struct {
	Type            string   `json:"type" description:"Token type, + joins multiple (e.g. invite+accept_terms)"`
	Email           string   `json:"email" description:"Email the token is bound to"`
	UserID          string   `json:"user_id,omitempty" description:"Target user for password/email changes"`
	CurrentPassword string   `json:"current_password,omitempty" description:"Current password, required for change-password tokens"`
	RoleIDs         []string `json:"role_ids,omitempty" description:"Roles an invite assigns on acceptance"`
	OrganisationID  string   `json:"organisation_id,omitempty" description:"Organisation an invite joins"`
	EstablishmentID string   `json:"establishment_id,omitempty" description:"Establishment an invite joins"`
	ExpiresInHours  int      `json:"expires_in_hours,omitempty" description:"Overrides the default token lifetime"`
}

// AcceptInviteRequest is the body for accepting an invite token.
type AcceptInviteRequest struct {
	Token     string `json:"token" description:"Opaque token secret"`
	Email     string `json:"email" description:"Email the token was sent to"`
	Password  string `json:"password,omitempty" description:"Password for the new user"`
	FirstName string `json:"first_name,omitempty" description:"First name for the new user"`
	LastName  string `json:"last_name,omitempty" description:"Last name for the new user"`
}

// ConsumeTokenRequest is the body for the single-field token workflows.
type ConsumeTokenRequest struct {
	Token string `json:"token" description:"Opaque token secret"`
	Email string `json:"email" description:"Email the token was sent to"`
}

// AcceptTermsRequest is the body for terms and privacy acceptance.
type AcceptTermsRequest struct {
	Token    string `json:"token" description:"Opaque token secret"`
	Email    string `json:"email" description:"Email the token was sent to"`
	Accepted bool   `json:"accepted" description:"Whether the user accepted"`
}

// SetPasswordRequest is the body for password reset and change.
type SetPasswordRequest struct {
	Token    string `json:"token" description:"Opaque token secret"`
	Email    string `json:"email" description:"Email the token was sent to"`
	Password string `json:"password" description:"New password"`
}
