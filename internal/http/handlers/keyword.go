package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/generation"
	"github.com/yungbote/seoflow-backend/internal/http/response"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type KeywordHandler struct {
	log      *logger.Logger
	keywords repos.KeywordRepo
	enq      jobrt.Enqueuer
}

func NewKeywordHandler(log *logger.Logger, keywords repos.KeywordRepo, enq jobrt.Enqueuer) *KeywordHandler {
	return &KeywordHandler{log: log.With("handler", "Keyword"), keywords: keywords, enq: enq}
}

type generateRequest struct {
	CompetitorURLs []string `json:"competitor_urls"`
}

// POST /api/keywords/:id/generate
//
// The keyword moves pending -> queued before the job is stored. A second
// request for the same keyword loses that move and gets 409.
func (h *KeywordHandler) Generate(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.RespondAppError(c, "invalid_keyword_id", err)
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	kw, err := h.keywords.GetByID(dbc, id)
	if err != nil {
		response.RespondAppError(c, "keyword_lookup_failed", apperr.Persistence("keyword.get", err))
		return
	}
	if kw == nil {
		response.RespondError(c, http.StatusNotFound, "keyword_not_found", errors.New("keyword not found"))
		return
	}
	won, err := generation.TransitionKeyword(dbc, h.keywords, kw.ID, []string{domain.KeywordPending}, domain.KeywordQueued, nil)
	if err != nil {
		response.RespondAppError(c, "keyword_queue_failed", err)
		return
	}
	if !won {
		response.RespondError(c, http.StatusConflict, "keyword_busy",
			fmt.Errorf("keyword %d is %s", kw.ID, kw.Status))
		return
	}

	payload := map[string]any{}
	if len(req.CompetitorURLs) > 0 {
		payload["competitor_urls"] = req.CompetitorURLs
	}
	job, err := h.enq.Enqueue(c.Request.Context(), jobrt.EnqueueRequest{
		JobType:    jobrt.JobArticleGenerate,
		EntityType: jobrt.EntityKeyword,
		EntityID:   kw.ID,
		Payload:    payload,
		Unique:     true,
	})
	if err != nil {
		if _, rerr := generation.TransitionKeyword(dbc, h.keywords, kw.ID,
			[]string{domain.KeywordQueued}, domain.KeywordPending, nil); rerr != nil {
			h.log.Warn("Keyword release failed", "keyword_id", kw.ID, "error", rerr)
		}
		response.RespondAppError(c, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}
