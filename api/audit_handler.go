package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/audit"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	if err := g.GET("/audit", a.listAudit,
		forge.WithSummary("Query audit log"),
		forge.WithDescription("Returns audit records in ascending sequence order. Pass next_seq as after_seq to read the next page."),
		forge.WithOperationID("listAudit"),
		forge.WithRequestSchema(ListAuditRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit page", AuditPage{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/audit/verify", a.verifyAudit,
		forge.WithSummary("Verify audit chain"),
		forge.WithDescription("Walks the whole audit log and checks its hash chain."),
		forge.WithOperationID("verifyAudit"),
		forge.WithResponseSchema(http.StatusOK, "Verification result", VerifyResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAudit(ctx forge.Context, req *ListAuditRequest) (*AuditPage, error) {
	if err := a.check(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = a.eng.Config().AuditPageSize
	}
	limit = defaultLimit(limit)

	filter := &audit.QueryFilter{
		EntityType: audit.EntityType(req.EntityType),
		EntityID:   req.EntityID,
		AfterSeq:   req.AfterSeq,
		Limit:      limit,
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, forge.BadRequest("invalid since timestamp")
		}
		filter.Since = &t
	}

	records, err := a.eng.ListAudit(ctx.Context(), filter)
	if err != nil {
		return nil, respond(ctx, err)
	}

	page := &AuditPage{Records: records}
	if len(records) == limit {
		page.NextSeq = records[len(records)-1].Seq
	}
	return page, ctx.JSON(http.StatusOK, page)
}

func (a *API) verifyAudit(ctx forge.Context, _ *struct{}) (*VerifyResponse, error) {
	res, err := a.eng.VerifyAudit(ctx.Context())
	if err != nil {
		if errors.Is(err, audit.ErrChainBroken) {
			resp := &VerifyResponse{Intact: false, Error: err.Error()}
			return resp, ctx.JSON(http.StatusOK, resp)
		}
		return nil, respond(ctx, err)
	}

	resp := &VerifyResponse{
		Intact:   true,
		Records:  res.Records,
		HeadSeq:  res.HeadSeq,
		HeadHash: res.HeadHash,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
