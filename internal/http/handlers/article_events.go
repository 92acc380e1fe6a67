package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/http/response"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/dbctx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
)

const historyLimit = 1000

// ArticleEventsHandler serves the progress history of an article and a live
// SSE stream of it.
type ArticleEventsHandler struct {
	log      *logger.Logger
	articles repos.ArticleRepo
	events   repos.AgentEventRepo
	hub      *realtime.SSEHub
}

func NewArticleEventsHandler(log *logger.Logger, articles repos.ArticleRepo, evs repos.AgentEventRepo, hub *realtime.SSEHub) *ArticleEventsHandler {
	return &ArticleEventsHandler{
		log:      log.With("handler", "ArticleEvents"),
		articles: articles,
		events:   evs,
		hub:      hub,
	}
}

// GET /api/articles/:id/events
func (h *ArticleEventsHandler) History(c *gin.Context) {
	article, ok := h.article(c)
	if !ok {
		return
	}
	history, err := h.history(c, article.ID)
	if err != nil {
		response.RespondAppError(c, "event_history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"article_id":    article.ID,
		"status":        article.Status,
		"events":        history,
		"active_agents": events.ActiveAgents(history),
	})
}

// GET /api/articles/:id/events/stream
//
// The client is subscribed before the history is read, so an event emitted in
// between may arrive twice; consumers dedupe on run_id and seq.
func (h *ArticleEventsHandler) Stream(c *gin.Context) {
	article, ok := h.article(c)
	if !ok {
		return
	}
	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, realtime.ArticleChannel(article.ID))
	defer h.hub.CloseClient(client)

	history, err := h.history(c, article.ID)
	if err != nil {
		response.RespondAppError(c, "event_history_failed", err)
		return
	}
	replay := make([]realtime.SSEMessage, 0, len(history))
	for _, ev := range history {
		replay = append(replay, realtime.SSEMessage{
			Channel: realtime.ArticleChannel(article.ID),
			Event:   realtime.SSEEventAgentEvent,
			Data:    ev,
		})
	}
	h.log.Debug("SSE stream open", "article_id", article.ID, "client_id", client.ID, "replay", len(replay))
	h.hub.ServeHTTP(c.Writer, c.Request, client, replay...)
}

func (h *ArticleEventsHandler) article(c *gin.Context) (*domain.Article, bool) {
	id, err := uintParam(c, "id")
	if err != nil {
		response.RespondAppError(c, "invalid_article_id", err)
		return nil, false
	}
	article, err := h.articles.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAppError(c, "article_lookup_failed", apperr.Persistence("article.get", err))
		return nil, false
	}
	if article == nil {
		response.RespondError(c, http.StatusNotFound, "article_not_found", errors.New("article not found"))
		return nil, false
	}
	return article, true
}

func (h *ArticleEventsHandler) history(c *gin.Context, articleID uint) ([]events.AgentEvent, error) {
	rows, err := h.events.ListByArticle(dbctx.Context{Ctx: c.Request.Context()}, articleID, historyLimit)
	if err != nil {
		return nil, apperr.Persistence("agent_event.list", err)
	}
	out := make([]events.AgentEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, events.FromRecord(r))
	}
	return out, nil
}
