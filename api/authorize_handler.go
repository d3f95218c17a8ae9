package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
)

func (a *API) registerAuthorizeRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Authorization check"),
		forge.WithDescription("Evaluates whether the account can perform the action on the resource."),
		forge.WithOperationID("authzCheck"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce authorization"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(AuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", AuthorizeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/batch-check", a.batchCheck,
		forge.WithSummary("Batch authorization check"),
		forge.WithDescription("Evaluates multiple authorization checks in one request."),
		forge.WithOperationID("authzBatchCheck"),
		forge.WithRequestSchema(BatchAuthorizeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Batch results", BatchAuthorizeResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	authReq, err := toAuthRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := a.eng.Authorize(ctx.Context(), authReq)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toAuthorizeResponse(res)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *AuthorizeRequest) (*AuthorizeResponse, error) {
	authReq, err := toAuthRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := a.eng.Authorize(ctx.Context(), authReq)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toAuthorizeResponse(res)
	if !res.Allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) batchCheck(ctx forge.Context, req *BatchAuthorizeRequest) (*BatchAuthorizeResponse, error) {
	if len(req.Checks) == 0 {
		return nil, forge.BadRequest("checks cannot be empty")
	}

	results := make([]AuthorizeResponse, len(req.Checks))
	for i, c := range req.Checks {
		authReq, err := toAuthRequest(&c)
		if err != nil {
			return nil, err
		}
		res, err := a.eng.Authorize(ctx.Context(), authReq)
		if err != nil {
			return nil, mapError(err)
		}
		results[i] = *toAuthorizeResponse(res)
	}

	resp := &BatchAuthorizeResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toAuthRequest(r *AuthorizeRequest) (*authsome.AuthRequest, error) {
	if r.AccountID == "" || r.Action == "" || r.Resource == "" {
		return nil, forge.BadRequest("account_id, action, and resource are required")
	}
	accountID, err := id.ParseAccountID(r.AccountID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid account ID: %v", err))
	}
	action := claim.Action(r.Action)
	if !action.Valid() {
		return nil, forge.BadRequest(fmt.Sprintf("unknown action %q", r.Action))
	}
	return &authsome.AuthRequest{
		AccountID: accountID,
		Action:    action,
		Resource:  r.Resource,
	}, nil
}
