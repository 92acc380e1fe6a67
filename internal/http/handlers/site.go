package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/http/response"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/seo/discovery"
)

type SiteHandler struct {
	sites repos.SiteRepo
	enq   jobrt.Enqueuer
}

func NewSiteHandler(sites repos.SiteRepo, enq jobrt.Enqueuer) *SiteHandler {
	return &SiteHandler{sites: sites, enq: enq}
}

type discoverRequest struct {
	Seeds    []string `json:"seeds"`
	Keywords []string `json:"keywords"`
	Limit    int      `json:"limit"`
}

// POST /api/sites/:id/plan
func (h *SiteHandler) Plan(c *gin.Context) {
	siteID, ok := h.site(c)
	if !ok {
		return
	}
	h.enqueue(c, jobrt.EnqueueRequest{
		JobType:    jobrt.JobContentPlanBuild,
		EntityType: jobrt.EntitySite,
		EntityID:   siteID,
		Unique:     true,
	})
}

// POST /api/sites/:id/discover
//
// With "keywords" the listed keywords are added as they are; otherwise the
// provider proposes up to "limit" ideas starting from "seeds".
func (h *SiteHandler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Limit < 0 || req.Limit > discovery.MaxLimit {
		response.RespondAppError(c, "invalid_limit", apperr.Validation("limit", "must be between 0 and 100"))
		return
	}
	siteID, ok := h.site(c)
	if !ok {
		return
	}
	payload := map[string]any{}
	if len(req.Seeds) > 0 {
		payload["seeds"] = req.Seeds
	}
	if len(req.Keywords) > 0 {
		payload["keywords"] = req.Keywords
	}
	if req.Limit > 0 {
		payload["limit"] = req.Limit
	}
	h.enqueue(c, jobrt.EnqueueRequest{
		JobType:    jobrt.JobKeywordDiscovery,
		EntityType: jobrt.EntitySite,
		EntityID:   siteID,
		Payload:    payload,
	})
}

func (h *SiteHandler) site(c *gin.Context) (uint, bool) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.RespondAppError(c, "invalid_site_id", err)
		return 0, false
	}
	site, err := h.sites.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAppError(c, "site_lookup_failed", apperr.Persistence("site.get", err))
		return 0, false
	}
	if site == nil {
		response.RespondError(c, http.StatusNotFound, "site_not_found", errors.New("site not found"))
		return 0, false
	}
	return site.ID, true
}

func (h *SiteHandler) enqueue(c *gin.Context, req jobrt.EnqueueRequest) {
	job, err := h.enq.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.RespondAppError(c, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}
