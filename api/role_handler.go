package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/authsome"
	"github.com/xraph/authsome/claim"
	"github.com/xraph/authsome/id"
	"github.com/xraph/authsome/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Creates a new role with an optional claim set."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithDescription("Returns details of a specific role."),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId", a.updateRole,
		forge.WithSummary("Update role"),
		forge.WithDescription("Updates a role's name and description."),
		forge.WithOperationID("updateRole"),
		forge.WithRequestSchema(UpdateRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId/claims", a.setRoleClaims,
		forge.WithSummary("Set role claims"),
		forge.WithDescription("Replaces a role's claim set."),
		forge.WithOperationID("setRoleClaims"),
		forge.WithRequestSchema(SetRoleClaimsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deleteRole,
		forge.WithSummary("Delete role"),
		forge.WithDescription("Deletes a role and detaches it from every account."),
		forge.WithOperationID("deleteRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithDescription("Lists roles with optional filters."),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", []*role.Role{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	claims, err := parseClaims(req.Claims)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r := &role.Role{
		ID:             id.NewRoleID(),
		OrganisationID: req.OrganisationID,
		Name:           req.Name,
		Description:    req.Description,
		Claims:         claims,
		IsSystem:       req.IsSystem,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.Validate(); err != nil {
		return nil, mapError(err)
	}

	if err := a.eng.Store().CreateRole(ctx.Context(), r); err != nil {
		return nil, mapError(err)
	}

	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleCreated(ctx.Context(), r)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.Store().GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) updateRole(ctx forge.Context, req *UpdateRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.Store().GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}
	if r.IsSystem {
		return nil, mapError(authsome.ErrSystemRoleImmutable)
	}

	if req.Name != "" {
		r.Name = req.Name
	}
	if req.Description != "" {
		r.Description = req.Description
	}

	if err := a.eng.Store().UpdateRole(ctx.Context(), r); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateOrganisation(ctx.Context(), r.OrganisationID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleUpdated(ctx.Context(), r)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) setRoleClaims(ctx forge.Context, req *SetRoleClaimsRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	claims, err := parseClaims(req.Claims)
	if err != nil {
		return nil, err
	}
	if err := claim.ValidateSet(claims); err != nil {
		return nil, mapError(err)
	}

	r, err := a.eng.Store().GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}
	if r.IsSystem {
		return nil, mapError(authsome.ErrSystemRoleImmutable)
	}

	if err := a.eng.Store().SetRoleClaims(ctx.Context(), roleID, claims); err != nil {
		return nil, mapError(err)
	}
	r.Claims = claims

	// Claim changes widen or narrow every cached resolution in the org.
	a.eng.InvalidateOrganisation(ctx.Context(), r.OrganisationID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleUpdated(ctx.Context(), r)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deleteRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.Store().GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}
	if r.IsSystem {
		return nil, mapError(authsome.ErrSystemRoleImmutable)
	}

	if err := a.eng.Store().DeleteRole(ctx.Context(), roleID); err != nil {
		return nil, mapError(err)
	}

	a.eng.InvalidateOrganisation(ctx.Context(), r.OrganisationID)
	if a.eng.Plugins() != nil {
		a.eng.Plugins().EmitRoleDeleted(ctx.Context(), roleID)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) ([]*role.Role, error) {
	filter := &role.ListFilter{
		OrganisationID: req.OrganisationID,
		Search:         req.Search,
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	}

	roles, err := a.eng.Store().ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return roles, ctx.JSON(http.StatusOK, roles)
}

func parseClaims(raw []string) ([]claim.Claim, error) {
	claims := make([]claim.Claim, 0, len(raw))
	for _, s := range raw {
		c, err := claim.Parse(s)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid claim %q: %v", s, err))
		}
		claims = append(claims, c)
	}
	return claims, nil
}
