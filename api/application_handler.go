package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/workflow"
)

func (a *API) registerApplicationRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("applications"))

	if err := g.POST("/applications", a.submitApplication,
		forge.WithSummary("Submit role application"),
		forge.WithDescription("Submits a role application for the authenticated user."),
		forge.WithOperationID("submitApplication"),
		forge.WithRequestSchema(SubmitApplicationRequest{}),
		forge.WithCreatedResponse(&application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/applications/documents", a.uploadDocument,
		forge.WithSummary("Upload supporting document"),
		forge.WithDescription("Stores a supporting document and returns the reference to attach at submission."),
		forge.WithOperationID("uploadApplicationDocument"),
		forge.WithRequestSchema(UploadDocumentRequest{}),
		forge.WithCreatedResponse(&application.Document{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/applications/stats", a.applicationStats,
		forge.WithSummary("Application statistics"),
		forge.WithDescription("Returns application counts per role and status."),
		forge.WithOperationID("applicationStats"),
		forge.WithResponseSchema(http.StatusOK, "Statistics", StatsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/applications/:applicationId", a.getApplication,
		forge.WithSummary("Get application"),
		forge.WithDescription("Returns details of a specific application."),
		forge.WithOperationID("getApplication"),
		forge.WithResponseSchema(http.StatusOK, "Application details", &application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/applications", a.listApplications,
		forge.WithSummary("List applications"),
		forge.WithDescription("Lists applications with optional filters, newest first."),
		forge.WithOperationID("listApplications"),
		forge.WithRequestSchema(ListApplicationsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Application list", []*application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/applications/:applicationId", a.withdrawApplication,
		forge.WithSummary("Withdraw application"),
		forge.WithDescription("Withdraws the authenticated user's open application."),
		forge.WithOperationID("withdrawApplication"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/applications/:applicationId/steps", a.resolveStep,
		forge.WithSummary("Resolve verification step"),
		forge.WithDescription("Resolves one verification step to completed or failed."),
		forge.WithOperationID("resolveApplicationStep"),
		forge.WithRequestSchema(ResolveStepRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated application", &application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/applications/:applicationId/approve", a.approveApplication,
		forge.WithSummary("Approve application"),
		forge.WithDescription("Approves an application whose steps have all completed."),
		forge.WithOperationID("approveApplication"),
		forge.WithResponseSchema(http.StatusOK, "Approved application", &application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/applications/:applicationId/reject", a.rejectApplication,
		forge.WithSummary("Reject application"),
		forge.WithDescription("Rejects an application with a mandatory reason."),
		forge.WithOperationID("rejectApplication"),
		forge.WithRequestSchema(RejectApplicationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Rejected application", &application.Application{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/applications", a.listUserApplications,
		forge.WithSummary("List user applications"),
		forge.WithDescription("Returns a user's application history, newest first."),
		forge.WithOperationID("listUserApplications"),
		forge.WithResponseSchema(http.StatusOK, "Application list", []*application.Application{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) submitApplication(ctx forge.Context, req *SubmitApplicationRequest) (*application.Application, error) {
	if req.Role == "" {
		return nil, forge.BadRequest("role is required")
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}

	callCtx := actorContext(ctx)
	actor, ok := sentinel.ActorFromContext(callCtx)
	if !ok {
		return nil, forge.Forbidden("authentication required")
	}

	docs := make([]application.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = application.Document{
			Type:     d.Type,
			URL:      d.URL,
			Name:     d.Name,
			MimeType: d.MimeType,
			Size:     d.Size,
		}
	}

	app, err := a.apps.Submit(callCtx, workflow.SubmitInput{
		UserID:    actor,
		Role:      role,
		Fields:    req.Fields,
		Documents: docs,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return app, ctx.JSON(http.StatusCreated, app)
}

func (a *API) uploadDocument(ctx forge.Context, req *UploadDocumentRequest) (*application.Document, error) {
	role, err := parseRole(req.Role)
	if err != nil {
		return nil, err
	}

	doc, err := a.apps.UploadDocument(actorContext(ctx), workflow.UploadInput{
		Role:     role,
		Type:     req.Type,
		Name:     req.Name,
		MimeType: req.MimeType,
		Data:     req.Data,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return doc, ctx.JSON(http.StatusCreated, doc)
}

func (a *API) getApplication(ctx forge.Context, _ *GetApplicationRequest) (*application.Application, error) {
	appID, err := id.ParseApplicationID(ctx.Param("applicationId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid application ID: %v", err))
	}

	app, err := a.apps.Get(ctx.Context(), appID)
	if err != nil {
		return nil, mapError(err)
	}
	return app, ctx.JSON(http.StatusOK, app)
}

func (a *API) listApplications(ctx forge.Context, req *ListApplicationsRequest) ([]*application.Application, error) {
	filter := &application.ListFilter{
		Limit:  int64(defaultLimit(req.Limit)),
		Offset: int64(req.Offset),
	}
	if req.UserID != "" {
		userID, err := id.ParseUserID(req.UserID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid user_id: %v", err))
		}
		filter.UserID = userID
	}
	if req.Role != "" {
		role, err := parseRole(req.Role)
		if err != nil {
			return nil, err
		}
		filter.Role = role
	}
	for _, s := range strings.Split(req.Status, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		status := application.Status(s)
		if !application.ValidStatus(status) {
			return nil, forge.BadRequest("unknown status: " + s)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	apps, err := a.apps.List(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	return apps, ctx.JSON(http.StatusOK, apps)
}

func (a *API) withdrawApplication(ctx forge.Context, _ *GetApplicationRequest) (*struct{}, error) {
	appID, err := id.ParseApplicationID(ctx.Param("applicationId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid application ID: %v", err))
	}

	if err := a.apps.Withdraw(actorContext(ctx), appID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) resolveStep(ctx forge.Context, req *ResolveStepRequest) (*application.Application, error) {
	appID, err := id.ParseApplicationID(ctx.Param("applicationId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid application ID: %v", err))
	}
	if req.Step == "" {
		return nil, forge.BadRequest("step is required")
	}
	outcome := application.StepStatus(req.Outcome)
	if outcome != application.StepCompleted && outcome != application.StepFailed {
		return nil, forge.BadRequest("outcome must be completed or failed")
	}

	app, err := a.apps.ResolveStep(actorContext(ctx), appID, req.Step, outcome, req.Notes)
	if err != nil {
		return nil, mapError(err)
	}
	return app, ctx.JSON(http.StatusOK, app)
}

func (a *API) approveApplication(ctx forge.Context, _ *GetApplicationRequest) (*application.Application, error) {
	appID, err := id.ParseApplicationID(ctx.Param("applicationId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid application ID: %v", err))
	}

	app, err := a.apps.Approve(actorContext(ctx), appID)
	if err != nil {
		return nil, mapError(err)
	}
	return app, ctx.JSON(http.StatusOK, app)
}

func (a *API) rejectApplication(ctx forge.Context, req *RejectApplicationRequest) (*application.Application, error) {
	appID, err := id.ParseApplicationID(ctx.Param("applicationId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid application ID: %v", err))
	}
	if req.Reason == "" {
		return nil, forge.BadRequest("reason is required")
	}

	app, err := a.apps.Reject(actorContext(ctx), appID, req.Reason)
	if err != nil {
		return nil, mapError(err)
	}
	return app, ctx.JSON(http.StatusOK, app)
}

func (a *API) applicationStats(ctx forge.Context, _ *struct{}) (*StatsResponse, error) {
	counts, err := a.apps.Stats(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &StatsResponse{Counts: make([]StatusCountInfo, len(counts))}
	for i, c := range counts {
		resp.Counts[i] = StatusCountInfo{
			Role:   string(c.Role),
			Status: string(c.Status),
			Count:  c.Count,
		}
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listUserApplications(ctx forge.Context, _ *ListUserApplicationsRequest) ([]*application.Application, error) {
	userID, err := id.ParseUserID(ctx.Param("userId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid user ID: %v", err))
	}

	apps, err := a.apps.ApplicationsForUser(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}
	return apps, ctx.JSON(http.StatusOK, apps)
}
