package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/id"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	return g.GET("/audit-entries", a.listAuditEntries,
		forge.WithSummary("Query audit trail"),
		forge.WithDescription("Returns audit entries with optional filters, newest first."),
		forge.WithOperationID("listAuditEntries"),
		forge.WithRequestSchema(ListAuditEntriesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit entry list", []*audit.Entry{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditEntries(ctx forge.Context, req *ListAuditEntriesRequest) ([]*audit.Entry, error) {
	filter := &audit.QueryFilter{
		Event:    req.Event,
		TargetID: req.TargetID,
		Decision: req.Decision,
		Limit:    int64(defaultLimit(req.Limit)),
		Offset:   int64(req.Offset),
	}

	if req.ActorID != "" {
		actorID, err := id.ParseUserID(req.ActorID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid actor_id: %v", err))
		}
		filter.ActorID = actorID
	}
	if req.SubjectID != "" {
		subjectID, err := id.ParseUserID(req.SubjectID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid subject_id: %v", err))
		}
		filter.SubjectID = subjectID
	}
	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	entries, err := a.eng.Store().ListAuditEntries(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return entries, ctx.JSON(http.StatusOK, entries)
}
