package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/domain"
)

// ChatService is the question answering surface used by the handlers.
type ChatService interface {
	Ask(ctx context.Context, req chat.Request) (domain.Answer, error)
	Stream(ctx context.Context, req chat.Request, emit chat.Emit) error
	DropConversation(ctx context.Context, id string) error
}

type chatRequest struct {
	Question       string     `json:"question"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Stream         bool       `json:"stream,omitempty"`
	TopK           int        `json:"top_k,omitempty"`
	DocumentIDs    []string   `json:"document_ids,omitempty"`
	SourceTypes    []string   `json:"source_types,omitempty"`
	IngestedAfter  *time.Time `json:"ingested_after,omitempty"`
}

func (r chatRequest) toChat() chat.Request {
	req := chat.Request{
		Question:       r.Question,
		ConversationID: r.ConversationID,
		TopK:           r.TopK,
		Filter: domain.Filter{
			DocumentIDs: r.DocumentIDs,
			SourceTypes: r.SourceTypes,
		},
	}
	if r.IngestedAfter != nil {
		req.Filter.IngestedAfter = *r.IngestedAfter
	}
	return req
}

type deltaEvent struct {
	Text string `json:"text"`
}

type streamErrorEvent struct {
	Error          APIError `json:"error"`
	Partial        string   `json:"partial"`
	Incomplete     bool     `json:"incomplete"`
	ConversationID string   `json:"conversation_id"`
}

type chatHandler struct {
	svc ChatService
}

func (h *chatHandler) chat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, domain.E(domain.KindInvalidRequest, "api.chat", err))
		return
	}
	if body.TopK < 0 {
		RespondError(c, domain.Errorf(domain.KindInvalidRequest, "api.chat", "top_k must be positive"))
		return
	}

	if !body.Stream {
		answer, err := h.svc.Ask(c.Request.Context(), body.toChat())
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, answer)
		return
	}
	h.stream(c, body.toChat())
}

// stream writes Server-Sent Events. Headers are only committed with the first
// event so that failures before generation starts still get a JSON error.
func (h *chatHandler) stream(c *gin.Context, req chat.Request) {
	ctx := c.Request.Context()
	started := false

	emit := func(e chat.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		switch e.Type {
		case chat.EventDelta:
			c.SSEvent(string(e.Type), deltaEvent{Text: e.Text})
		case chat.EventEnd:
			c.SSEvent(string(e.Type), struct{}{})
		case chat.EventFinal:
			c.SSEvent(string(e.Type), e.Answer)
		case chat.EventError:
			_, env := envelope(e.Err)
			c.SSEvent(string(e.Type), streamErrorEvent{
				Error:          env.Error,
				Partial:        e.Text,
				Incomplete:     true,
				ConversationID: e.Answer.ConversationID,
			})
		}
		c.Writer.Flush()
		return ctx.Err()
	}

	if err := h.svc.Stream(ctx, req, emit); err != nil && !started {
		RespondError(c, err)
	} else if err != nil {
		_ = c.Error(err)
	}
}

func (h *chatHandler) dropConversation(c *gin.Context) {
	if err := h.svc.DropConversation(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
