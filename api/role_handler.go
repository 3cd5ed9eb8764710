package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.GET("/roles/:role/requirements", a.roleRequirements,
		forge.WithSummary("Role application requirements"),
		forge.WithDescription("Returns the documents, verification steps, and upload limits for applying to a role."),
		forge.WithOperationID("roleRequirements"),
		forge.WithResponseSchema(http.StatusOK, "Requirements", application.Requirements{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/roles", a.listUserRoles,
		forge.WithSummary("List user roles"),
		forge.WithDescription("Returns the user's current role set."),
		forge.WithOperationID("listUserRoles"),
		forge.WithResponseSchema(http.StatusOK, "Role set", RolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/users/:userId/roles", a.grantRole,
		forge.WithSummary("Grant role"),
		forge.WithDescription("Grants a role to a user directly, bypassing the application workflow."),
		forge.WithOperationID("grantRole"),
		forge.WithRequestSchema(GrantRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role set", RolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/users/:userId/roles/:role", a.revokeRole,
		forge.WithSummary("Revoke role"),
		forge.WithDescription("Removes a role from a user."),
		forge.WithOperationID("revokeRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) roleRequirements(ctx forge.Context, _ *RoleRequirementsRequest) (*application.Requirements, error) {
	role, err := parseRole(ctx.Param("role"))
	if err != nil {
		return nil, err
	}

	reqs, err := application.RequirementsFor(role)
	if err != nil {
		return nil, mapError(err)
	}
	return &reqs, ctx.JSON(http.StatusOK, &reqs)
}

func (a *API) listUserRoles(ctx forge.Context, _ *ListUserApplicationsRequest) (*RolesResponse, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}

	u, err := a.eng.Store().GetUser(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &RolesResponse{UserID: u.ID.String(), Roles: policy.RoleStrings(u.Roles)}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) grantRole(ctx forge.Context, req *GrantRoleRequest) (*RolesResponse, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}

	callCtx := actorContext(ctx)
	if err := a.eng.GrantRole(callCtx, userID, role); err != nil {
		return nil, mapError(err)
	}

	u, err := a.eng.Store().GetUser(callCtx, userID)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &RolesResponse{UserID: u.ID.String(), Roles: policy.RoleStrings(u.Roles)}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) revokeRole(ctx forge.Context, _ *RevokeRoleRequest) (*struct{}, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}
	role, err := parseRole(ctx.Param("role"))
	if err != nil {
		return nil, err
	}

	if err := a.eng.RevokeRole(actorContext(ctx), userID, role); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}
