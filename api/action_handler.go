package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/account"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/token"
)

func (a *API) registerTokenRoutes(router forge.Router) error {
	g := router.Group("/v1/tokens", forge.WithGroupTags("tokens"))

	if err := g.POST("", a.issueToken,
		forge.WithSummary("Issue action token"),
		forge.WithDescription("Creates a single-use token for an account workflow and dispatches it to the bound email. Reset-password requests answer 202 with no body whether or not the address has an account."),
		forge.WithOperationID("issueToken"),
		forge.WithRequestSchema(IssueTokenRequest{}),
		forge.WithCreatedResponse(IssueTokenResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/invite/accept", a.acceptInvite,
		forge.WithSummary("Accept invite"),
		forge.WithDescription("Consumes an invite token, creating the user and account it describes."),
		forge.WithOperationID("acceptInvite"),
		forge.WithRequestSchema(AcceptInviteRequest{}),
		forge.WithCreatedResponse(&account.UserAccount{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/validate-email", a.validateEmail,
		forge.WithSummary("Validate email"),
		forge.WithDescription("Consumes a validate-email token and marks the address validated."),
		forge.WithOperationID("validateEmail"),
		forge.WithRequestSchema(ConsumeTokenRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/terms", a.acceptTerms,
		forge.WithSummary("Accept terms"),
		forge.WithDescription("Consumes an accept-terms token. Declining leaves the token usable."),
		forge.WithOperationID("acceptTerms"),
		forge.WithRequestSchema(AcceptTermsRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/privacy", a.acceptPrivacyPolicy,
		forge.WithSummary("Accept privacy policy"),
		forge.WithDescription("Consumes an accept-privacy-policy token. Declining leaves the token usable."),
		forge.WithOperationID("acceptPrivacyPolicy"),
		forge.WithRequestSchema(AcceptTermsRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/reset-password", a.resetPassword,
		forge.WithSummary("Reset password"),
		forge.WithDescription("Consumes a reset-password token and replaces the user's password."),
		forge.WithOperationID("resetPassword"),
		forge.WithRequestSchema(SetPasswordRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/change-password", a.changePassword,
		forge.WithSummary("Change password"),
		forge.WithDescription("Consumes a change-password token and replaces the user's password."),
		forge.WithOperationID("changePassword"),
		forge.WithRequestSchema(SetPasswordRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/change-email", a.changeEmail,
		forge.WithSummary("Change email"),
		forge.WithDescription("Consumes a change-email token and switches the user to the bound address."),
		forge.WithOperationID("changeEmail"),
		forge.WithRequestSchema(ConsumeTokenRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) issueToken(ctx forge.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	if req.Type == "" {
		return nil, forge.BadRequest("type is required")
	}
	typ, err := token.ParseType(req.Type)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid type: %v", err))
	}

	issue := &authsome.IssueTokenRequest{
		Type:            typ,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		OrganisationID:  req.OrganisationID,
		EstablishmentID: req.EstablishmentID,
		ExpiresInHours:  req.ExpiresInHours,
	}
	if req.UserID != "" {
		userID, err := id.ParseUserID(req.UserID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
		}
		issue.UserID = userID
	}
	for _, raw := range req.RoleIDs {
		roleID, err := id.ParseRoleID(raw)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
		}
		issue.RoleIDs = append(issue.RoleIDs, roleID)
	}

	act, err := a.eng.IssueToken(ctx.Context(), issue)
	if typ.Has(token.TypeResetPassword) {
		// The reply never says whether the address has an account; the
		// token travels only through the notifier.
		if err != nil && !maskAccountProbe(typ, err) {
			return nil, mapError(err)
		}
		return nil, ctx.NoContent(http.StatusAccepted)
	}
	if err != nil {
		return nil, mapError(err)
	}

	resp := &IssueTokenResponse{
		ID:    act.ID.String(),
		Token: act.Token,
		Type:  act.Type.String(),
		Email: act.Email,
	}
	if act.ExpiresAt != nil {
		resp.ExpiresAt = act.ExpiresAt.Format(time.RFC3339)
	}

	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) acceptInvite(ctx forge.Context, req *AcceptInviteRequest) (*account.UserAccount, error) {
	if req.Token == "" || req.Email == "" {
		return nil, forge.BadRequest("token and email are required")
	}

	acct, err := a.eng.AcceptInvite(ctx.Context(), &authsome.AcceptInviteInput{
		Token:     req.Token,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return acct, ctx.JSON(http.StatusCreated, acct)
}

func (a *API) validateEmail(ctx forge.Context, req *ConsumeTokenRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" {
		return nil, forge.BadRequest("token and email are required")
	}

	if err := a.eng.ValidateEmail(ctx.Context(), req.Token, req.Email); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) acceptTerms(ctx forge.Context, req *AcceptTermsRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" {
		return nil, forge.BadRequest("token and email are required")
	}

	if err := a.eng.AcceptTerms(ctx.Context(), req.Token, req.Email, req.Accepted); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) acceptPrivacyPolicy(ctx forge.Context, req *AcceptTermsRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" {
		return nil, forge.BadRequest("token and email are required")
	}

	if err := a.eng.AcceptPrivacyPolicy(ctx.Context(), req.Token, req.Email, req.Accepted); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) resetPassword(ctx forge.Context, req *SetPasswordRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" || req.Password == "" {
		return nil, forge.BadRequest("token, email, and password are required")
	}

	if err := a.eng.ResetPassword(ctx.Context(), req.Token, req.Email, req.Password); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) changePassword(ctx forge.Context, req *SetPasswordRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" || req.Password == "" {
		return nil, forge.BadRequest("token, email, and password are required")
	}

	if err := a.eng.ChangePassword(ctx.Context(), req.Token, req.Email, req.Password); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) changeEmail(ctx forge.Context, req *ConsumeTokenRequest) (*struct{}, error) {
	if req.Token == "" || req.Email == "" {
		return nil, forge.BadRequest("token and email are required")
	}

	if err := a.eng.ChangeEmail(ctx.Context(), req.Token, req.Email); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
