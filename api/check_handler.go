package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/sentinel"
	"github.com/xraph/sentinel/id"
	"github.com/xraph/sentinel/policy"
)

func (a *API) registerCheckRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Authorization check"),
		forge.WithDescription("Evaluates whether the user can perform the action on the resource."),
		forge.WithOperationID("authzCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce authorization"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("authzEnforce"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/batch-check", a.batchCheck,
		forge.WithSummary("Batch authorization check"),
		forge.WithDescription("Evaluates multiple authorization checks in one request."),
		forge.WithOperationID("authzBatchCheck"),
		forge.WithRequestSchema(BatchCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Batch results", BatchCheckResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	access, err := toAccessRequest(req)
	if err != nil {
		return nil, err
	}

	result, err := a.eng.Authorize(actorContext(ctx), access)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toCheckResponse(result)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	access, err := toAccessRequest(req)
	if err != nil {
		return nil, err
	}

	result, err := a.eng.Authorize(actorContext(ctx), access)
	if err != nil {
		return nil, mapError(err)
	}

	resp := toCheckResponse(result)
	if !result.Allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) batchCheck(ctx forge.Context, req *BatchCheckRequest) (*BatchCheckResponse, error) {
	if len(req.Checks) == 0 {
		return nil, forge.BadRequest("checks cannot be empty")
	}

	callCtx := actorContext(ctx)
	results := make([]CheckResponse, len(req.Checks))
	for i := range req.Checks {
		access, err := toAccessRequest(&req.Checks[i])
		if err != nil {
			return nil, err
		}
		result, err := a.eng.Authorize(callCtx, access)
		if err != nil {
			return nil, mapError(err)
		}
		results[i] = *toCheckResponse(result)
	}

	resp := &BatchCheckResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toAccessRequest(r *CheckRequest) (*sentinel.AccessRequest, error) {
	if r.UserID == "" || r.Resource == "" || r.Action == "" {
		return nil, forge.BadRequest("user_id, resource, and action are required")
	}
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return nil, forge.BadRequest("invalid user_id: " + err.Error())
	}
	return &sentinel.AccessRequest{
		UserID:   userID,
		Resource: policy.Resource(r.Resource),
		Action:   policy.Action(r.Action),
		Context:  r.Context,
	}, nil
}

func toCheckResponse(r *sentinel.AccessResult) *CheckResponse {
	resp := &CheckResponse{
		Allowed:    r.Allowed,
		Decision:   string(r.Decision),
		Reason:     r.Reason,
		EvalTimeNs: r.EvalTimeNs,
	}
	if r.MatchedBy != nil {
		resp.MatchedBy = &PermissionInfo{
			Resource:   string(r.MatchedBy.Resource),
			Action:     string(r.MatchedBy.Action),
			Conditions: r.MatchedBy.Conditions,
		}
	}
	return resp
}
