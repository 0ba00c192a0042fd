package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/pkg/response"
)

type actorService interface {
	Create(ctx context.Context, actor *models.ActorContext, req dto.CreateActorRequest) (*models.Actor, error)
	List(ctx context.Context, actor *models.ActorContext, query dto.ActorQuery) ([]models.Actor, int, error)
	Delete(ctx context.Context, actor *models.ActorContext, targetID, successorID string) error
}

// ActorHandler manages the actor accounts of the caller's tenant.
type ActorHandler struct {
	service actorService
}

// NewActorHandler constructs the handler.
func NewActorHandler(svc actorService) *ActorHandler {
	return &ActorHandler{service: svc}
}

// Create godoc
// @Summary Create actor
// @Tags Actors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateActorRequest true "Actor payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /actors [post]
func (h *ActorHandler) Create(c *gin.Context) {
	var req dto.CreateActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid actor payload"))
		return
	}
	actor, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, actor)
}

// List godoc
// @Summary List actors
// @Tags Actors
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role"
// @Param active query bool false "Active"
// @Param search query string false "Name or email"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /actors [get]
func (h *ActorHandler) List(c *gin.Context) {
	var query dto.ActorQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	actors, total, err := h.service.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := repository.NormalizePage(query.Page, query.PageSize)
	response.JSON(c, http.StatusOK, actors, &response.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Delete godoc
// @Summary Delete actor
// @Description Records owned by the actor move to successorId when given, otherwise their owner is cleared
// @Tags Actors
// @Security BearerAuth
// @Param id path string true "Actor id"
// @Param successorId query string false "Successor actor id"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /actors/{id} [delete]
func (h *ActorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Query("successorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
