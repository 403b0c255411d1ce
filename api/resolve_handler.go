package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

func (a *API) registerResolveRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("authorization"))

	return g.POST("/resolve", a.resolve,
		forge.WithSummary("Resolve command"),
		forge.WithDescription("Decides whether the actor may run the namespaced command. Denials are 200 responses with allowed=false."),
		forge.WithOperationID("resolveCommand"),
		forge.WithRequestSchema(ResolveRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Resolve result", ResolveResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) resolve(ctx forge.Context, req *ResolveRequest) (*ResolveResponse, error) {
	if err := a.check(req); err != nil {
		return nil, err
	}

	result, err := a.eng.Check(ctx.Context(), req.ActorID, req.Command)
	if err != nil {
		return nil, respond(ctx, err)
	}

	resp := toResolveResponse(result)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toResolveResponse(r *bastion.Result) *ResolveResponse {
	return &ResolveResponse{
		Allowed:         r.Allowed,
		Decision:        string(r.Decision),
		Reason:          r.Reason,
		GrantedBy:       string(r.GrantedBy),
		SnapshotVersion: r.SnapshotVersion,
	}
}
