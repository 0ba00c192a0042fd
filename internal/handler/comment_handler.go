package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/pkg/response"
)

type commentService interface {
	Submit(ctx context.Context, slug string, actor *models.ActorContext, newsID string, req dto.CommentRequest) (string, error)
}

// CommentHandler accepts public comments on published news.
type CommentHandler struct {
	service commentService
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(svc commentService) *CommentHandler {
	return &CommentHandler{service: svc}
}

// Submit godoc
// @Summary Submit comment
// @Description Anonymous or signed-in comment on a published news item; comments start pending moderation
// @Tags Public
// @Accept json
// @Produce json
// @Param slug path string true "Tenant slug"
// @Param id path string true "News item id"
// @Param payload body dto.CommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /public/tenants/{slug}/news/{id}/comments [post]
func (h *CommentHandler) Submit(c *gin.Context) {
	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid comment payload"))
		return
	}
	id, err := h.service.Submit(c.Request.Context(), c.Param("slug"), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreatedResponse{ID: id})
}
