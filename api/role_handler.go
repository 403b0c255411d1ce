package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.GET("/roles/:role/permissions", a.getRolePermissions,
		forge.WithSummary("Get role permissions"),
		forge.WithDescription("Returns the commands the role grants. Roles with nothing stored return an empty set."),
		forge.WithOperationID("getRolePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Role permission set", &permission.Set{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.PUT("/roles/:role/permissions", a.setRolePermissions,
		forge.WithSummary("Set role permissions"),
		forge.WithDescription("Replaces the role's common and scoped entries. The caller must hold the role or a higher one."),
		forge.WithOperationID("setRolePermissions"),
		forge.WithRequestSchema(SetRolePermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated permission set", &permission.Set{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getRolePermissions(ctx forge.Context, req *GetRolePermissionsRequest) (*permission.Set, error) {
	req.Role = ctx.Param("role")
	if err := a.check(req); err != nil {
		return nil, err
	}

	set, err := a.eng.GetRolePermissionSet(ctx.Context(), role.Name(req.Role))
	if err != nil {
		return nil, respond(ctx, err)
	}
	return set, ctx.JSON(http.StatusOK, set)
}

func (a *API) setRolePermissions(ctx forge.Context, req *SetRolePermissionsRequest) (*permission.Set, error) {
	req.Role = ctx.Param("role")
	if err := a.check(req); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	r := role.Name(req.Role)
	c := bastion.WithReason(ctx.Context(), req.Reason)
	if err := a.eng.SetRolePermissionSet(c, caller, r, req.Common, req.Scoped); err != nil {
		return nil, respond(ctx, err)
	}

	set, err := a.eng.GetRolePermissionSet(ctx.Context(), r)
	if err != nil {
		return nil, respond(ctx, err)
	}
	return set, ctx.JSON(http.StatusOK, set)
}
