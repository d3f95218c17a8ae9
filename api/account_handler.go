package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
)

func (a *API) registerUserRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("users"))

	if err := g.POST("/users", a.createUser,
		forge.WithSummary("Create user"),
		forge.WithDescription("Creates a new user with an optional initial password."),
		forge.WithOperationID("createUser"),
		forge.WithRequestSchema(CreateUserRequest{}),
		forge.WithCreatedResponse(&account.User{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId", a.getUser,
		forge.WithSummary("Get user"),
		forge.WithDescription("Returns details of a specific user."),
		forge.WithOperationID("getUser"),
		forge.WithResponseSchema(http.StatusOK, "User details", &account.User{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/users/:userId", a.deleteUser,
		forge.WithSummary("Delete user"),
		forge.WithDescription("Deletes a user with all their accounts and credentials."),
		forge.WithOperationID("deleteUser"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerAccountRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("accounts"))

	if err := g.POST("/accounts", a.createAccount,
		forge.WithSummary("Create account"),
		forge.WithDescription("Creates an account binding a user to an organisation and establishment."),
		forge.WithOperationID("createAccount"),
		forge.WithRequestSchema(CreateAccountRequest{}),
		forge.WithCreatedResponse(&account.UserAccount{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/accounts/:accountId", a.getAccount,
		forge.WithSummary("Get account"),
		forge.WithDescription("Returns details of a specific account."),
		forge.WithOperationID("getAccount"),
		forge.WithResponseSchema(http.StatusOK, "Account details", &account.UserAccount{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/accounts", a.listAccounts,
		forge.WithSummary("List accounts"),
		forge.WithDescription("Lists accounts with optional filters."),
		forge.WithOperationID("listAccounts"),
		forge.WithRequestSchema(ListAccountsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Account list", []*account.UserAccount{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/accounts/:accountId/enabled", a.setAccountEnabled,
		forge.WithSummary("Enable or disable account"),
		forge.WithDescription("Sets the account's enabled state. Disabled accounts fail every authorization check."),
		forge.WithOperationID("setAccountEnabled"),
		forge.WithRequestSchema(SetAccountEnabledRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/accounts/:accountId", a.deleteAccount,
		forge.WithSummary("Delete account"),
		forge.WithDescription("Deletes an account and its role assignments."),
		forge.WithOperationID("deleteAccount"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/accounts/:accountId/roles", a.assignRole,
		forge.WithSummary("Assign role to account"),
		forge.WithDescription("Attaches a role to an account. Re-assigning is a no-op."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/accounts/:accountId/roles/:roleId", a.unassignRole,
		forge.WithSummary("Unassign role from account"),
		forge.WithDescription("Detaches a role from an account."),
		forge.WithOperationID("unassignRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/accounts/:accountId/roles", a.listAccountRoles,
		forge.WithSummary("List account roles"),
		forge.WithDescription("Returns the role IDs attached to an account."),
		forge.WithOperationID("listAccountRoles"),
		forge.WithResponseSchema(http.StatusOK, "Role IDs", AccountRolesResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createUser(ctx forge.Context, req *CreateUserRequest) (*account.User, error) {
	if req.Email == "" {
		return nil, forge.BadRequest("email is required")
	}

	now := time.Now()
	u := &account.User{
		ID:        id.NewUserID(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.eng.Store().CreateUser(ctx.Context(), u); err != nil {
		return nil, mapError(err)
	}

	if req.Password != "" {
		if err := a.eng.SetPassword(ctx.Context(), u.ID, req.Password); err != nil {
			return nil, mapError(err)
		}
	}

	return u, ctx.JSON(http.StatusCreated, u)
}

func (a *API) getUser(ctx forge.Context, _ *GetUserRequest) (*account.User, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}

	u, err := a.eng.Store().GetUser(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	return u, ctx.JSON(http.StatusOK, u)
}

func (a *API) deleteUser(ctx forge.Context, _ *GetUserRequest) (*struct{}, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}

	if err := a.eng.Store().DeleteUser(ctx.Context(), userID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) createAccount(ctx forge.Context, req *CreateAccountRequest) (*account.UserAccount, error) {
	if req.UserID == "" || req.OrganisationID == "" {
		return nil, forge.BadRequest("user_id and organisation_id are required")
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}
	if _, err := a.eng.Store().GetUser(ctx.Context(), userID); err != nil {
		return nil, mapError(err)
	}

	now := time.Now()
	acct := &account.UserAccount{
		ID:              id.NewAccountID(),
		UserID:          userID,
		OrganisationID:  req.OrganisationID,
		EstablishmentID: req.EstablishmentID,
		Enabled:         true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := a.eng.Store().CreateAccount(ctx.Context(), acct); err != nil {
		return nil, mapError(err)
	}

	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitAccountCreated(ctx.Context(), acct)
	}

	return acct, ctx.JSON(http.StatusCreated, acct)
}

func (a *API) getAccount(ctx forge.Context, _ *GetAccountRequest) (*account.UserAccount, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	acct, err := a.eng.Store().GetAccount(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	return acct, ctx.JSON(http.StatusOK, acct)
}

func (a *API) listAccounts(ctx forge.Context, req *ListAccountsRequest) ([]*account.UserAccount, error) {
	filter := &account.ListFilter{
		OrganisationID:  req.OrganisationID,
		EstablishmentID: req.EstablishmentID,
		Limit:           defaultLimit(req.Limit),
		Offset:          req.Offset,
	}
	if req.UserID != "" {
		userID, err := id.ParseUserID(req.UserID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
		}
		filter.UserID = &userID
	}
	if req.Enabled != "" {
		enabled := req.Enabled == "true"
		filter.Enabled = &enabled
	}

	accounts, err := a.eng.Store().ListAccounts(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return accounts, ctx.JSON(http.StatusOK, accounts)
}

func (a *API) setAccountEnabled(ctx forge.Context, req *SetAccountEnabledRequest) (*struct{}, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	acct, err := a.eng.Store().GetAccount(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := a.eng.Store().SetAccountEnabled(ctx.Context(), accountID, req.Enabled); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateAccount(ctx.Context(), acct.OrganisationID, accountID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitAccountEnabledChanged(ctx.Context(), accountID, req.Enabled)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) deleteAccount(ctx forge.Context, _ *GetAccountRequest) (*struct{}, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	acct, err := a.eng.Store().GetAccount(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := a.eng.Store().DeleteAccount(ctx.Context(), accountID); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateAccount(ctx.Context(), acct.OrganisationID, accountID)

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*struct{}, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	acct, err := a.eng.Store().GetAccount(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := a.eng.Store().AssignRole(ctx.Context(), accountID, roleID); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateAccount(ctx.Context(), acct.OrganisationID, accountID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleAssigned(ctx.Context(), accountID, roleID)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) unassignRole(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	acct, err := a.eng.Store().GetAccount(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	if err := a.eng.Store().UnassignRole(ctx.Context(), accountID, roleID); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateAccount(ctx.Context(), acct.OrganisationID, accountID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleUnassigned(ctx.Context(), accountID, roleID)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listAccountRoles(ctx forge.Context, _ *GetAccountRequest) (*AccountRolesResponse, error) {
	accountID, err := id.ParseAccountID(ctx.Param("accountId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}

	roleIDs, err := a.eng.Store().ListAccountRoles(ctx.Context(), accountID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AccountRolesResponse{RoleIDs: make([]string, len(roleIDs))}
	for i, rid := range roleIDs {
		resp.RoleIDs[i] = rid.String()
	}

	return resp, ctx.JSON(http.StatusOK, resp)
}
