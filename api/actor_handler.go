package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/role"
)

func (a *API) registerActorRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("actors"))

	if err := g.GET("/actors/:actorId", a.getActor,
		forge.WithSummary("Get actor"),
		forge.WithDescription("Returns the actor's roles, denial list and team flag. Actors with nothing stored return an empty record."),
		forge.WithOperationID("getActor"),
		forge.WithResponseSchema(http.StatusOK, "Actor record", ActorResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/actors/:actorId/roles", a.setRoles,
		forge.WithSummary("Set roles"),
		forge.WithDescription("Replaces the actor's role set. The caller must outrank the target and may only grant roles at or below its own rank."),
		forge.WithOperationID("setActorRoles"),
		forge.WithRequestSchema(SetRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated actor", ActorResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/actors/:actorId/denied", a.setDenied,
		forge.WithSummary("Set denied commands"),
		forge.WithDescription("Replaces the actor's personal denial list. The actor must already have a stored record."),
		forge.WithOperationID("setActorDenied"),
		forge.WithRequestSchema(SetDeniedRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated actor", ActorResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/actors/:actorId", a.removeStaff,
		forge.WithSummary("Remove staff"),
		forge.WithDescription("Clears the actor's roles and denial list in one change."),
		forge.WithOperationID("removeStaff"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/staff", a.listStaff,
		forge.WithSummary("List staff"),
		forge.WithDescription("Lists actors holding at least one role, ordered by actor ID."),
		forge.WithOperationID("listStaff"),
		forge.WithRequestSchema(ListStaffRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Staff list", ListResponse[*ActorResponse]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getActor(ctx forge.Context, req *GetActorRequest) (*ActorResponse, error) {
	req.ActorID = ctx.Param("actorId")
	if err := a.check(req); err != nil {
		return nil, err
	}

	rec, err := a.eng.GetAssignment(ctx.Context(), req.ActorID)
	if err != nil {
		return nil, respond(ctx, err)
	}

	resp := toActorResponse(rec)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) setRoles(ctx forge.Context, req *SetRolesRequest) (*ActorResponse, error) {
	req.ActorID = ctx.Param("actorId")
	if err := a.check(req); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]role.Name, len(req.Roles))
	for i, r := range req.Roles {
		names[i] = role.Name(r)
	}

	c := bastion.WithReason(ctx.Context(), req.Reason)
	if err := a.eng.SetRoles(c, caller, req.ActorID, names); err != nil {
		return nil, respond(ctx, err)
	}
	return a.writeActor(ctx, req.ActorID)
}

func (a *API) setDenied(ctx forge.Context, req *SetDeniedRequest) (*ActorResponse, error) {
	req.ActorID = ctx.Param("actorId")
	if err := a.check(req); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	cmds := make([]permission.CommandID, len(req.Commands))
	for i, c := range req.Commands {
		cmds[i] = permission.CommandID(c)
	}

	c := bastion.WithReason(ctx.Context(), req.Reason)
	if err := a.eng.SetDenied(c, caller, req.ActorID, cmds); err != nil {
		return nil, respond(ctx, err)
	}
	return a.writeActor(ctx, req.ActorID)
}

func (a *API) removeStaff(ctx forge.Context, req *RemoveStaffRequest) (*struct{}, error) {
	req.ActorID = ctx.Param("actorId")
	if err := a.check(req); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	c := bastion.WithReason(ctx.Context(), req.Reason)
	if err := a.eng.RemoveStaff(c, caller, req.ActorID); err != nil {
		return nil, respond(ctx, err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listStaff(ctx forge.Context, req *ListStaffRequest) (*ListResponse[*ActorResponse], error) {
	if err := a.check(req); err != nil {
		return nil, err
	}

	filter := &assignment.ListFilter{
		Role:   role.Name(req.Role),
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}
	staff, total, err := a.eng.ListStaff(ctx.Context(), filter)
	if err != nil {
		return nil, respond(ctx, err)
	}

	items := make([]*ActorResponse, len(staff))
	for i, s := range staff {
		items[i] = toActorResponse(s)
	}
	resp := &ListResponse[*ActorResponse]{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

// writeActor reloads the target after a mutation and writes it.
func (a *API) writeActor(ctx forge.Context, actorID string) (*ActorResponse, error) {
	rec, err := a.eng.GetAssignment(ctx.Context(), actorID)
	if err != nil {
		return nil, respond(ctx, err)
	}
	resp := toActorResponse(rec)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toActorResponse(a *assignment.Assignment) *ActorResponse {
	return &ActorResponse{Assignment: a, Team: a.Team()}
}
