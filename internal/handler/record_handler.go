package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/service"
	"github.com/noah-isme/sma-lifecycle-api/pkg/response"
)

type recordService interface {
	Create(ctx context.Context, actor *models.ActorContext, t models.RecordType, fields json.RawMessage) (string, error)
	Transition(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string, action models.Action, fields json.RawMessage) (models.Record, error)
	BulkTransition(ctx context.Context, actor *models.ActorContext, t models.RecordType, ids []string, action models.Action, fields json.RawMessage) (*dto.BulkResult, error)
	Delete(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string) error
	Get(ctx context.Context, actor *models.ActorContext, t models.RecordType, id string) (models.Record, error)
	AvailableActions(actor *models.ActorContext, t models.RecordType, record models.Record) []models.Action
	List(ctx context.Context, actor *models.ActorContext, t models.RecordType, filter models.RecordFilter) (*service.RecordPage, error)
}

// RecordHandler exposes the lifecycle of every workflow record variant.
type RecordHandler struct {
	service recordService
}

// NewRecordHandler constructs the handler.
func NewRecordHandler(svc recordService) *RecordHandler {
	return &RecordHandler{service: svc}
}

// List godoc
// @Summary List records
// @Description List records of one type visible to the caller
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param type path string true "Record type (lesson-plans, time-records, news-items, curriculum-entries, news-comments)"
// @Param status query string false "Status"
// @Param ownerId query string false "Owner actor id"
// @Param newsId query string false "News item id (comments only)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /records/{type} [get]
func (h *RecordHandler) List(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	var query dto.RecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}

	filter := models.RecordFilter{
		Status:   query.Status,
		OwnerID:  query.OwnerID,
		NewsID:   query.NewsID,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	page, err := h.service.List(c.Request.Context(), actorFromContext(c), t, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, page.Items, &response.Pagination{
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.Total,
	})
}

// Get godoc
// @Summary Get record
// @Description meta.actions lists the transitions the caller may apply next
// @Tags Records
// @Produce json
// @Security BearerAuth
// @Param type path string true "Record type"
// @Param id path string true "Record id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /records/{type}/{id} [get]
func (h *RecordHandler) Get(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	actor := actorFromContext(c)
	record, err := h.service.Get(c.Request.Context(), actor, t, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil, map[string]interface{}{
		"actions": h.service.AvailableActions(actor, t, record),
	})
}

// Create godoc
// @Summary Create record
// @Description The body is the field payload of the record type
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "Record type"
// @Param payload body object true "Record fields"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{type} [post]
func (h *RecordHandler) Create(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, bindError(err, "invalid record payload"))
		return
	}

	id, err := h.service.Create(c.Request.Context(), actorFromContext(c), t, raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreatedResponse{ID: id})
}

// Transition godoc
// @Summary Apply an action to a record
// @Description "edit" updates fields; every other action follows the record's state machine
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "Record type"
// @Param id path string true "Record id"
// @Param payload body dto.TransitionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{type}/{id}/transitions [post]
func (h *RecordHandler) Transition(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid transition payload"))
		return
	}

	action := models.Action(req.Action)
	record, err := h.service.Transition(c.Request.Context(), actorFromContext(c), t, c.Param("id"), action, req.Fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	if action == models.ActionDelete {
		response.NoContent(c)
		return
	}
	response.OK(c, record)
}

// Bulk godoc
// @Summary Apply an action to many records
// @Description Items failing policy or the state machine are reported; ids outside the tenant are ignored
// @Tags Records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "Record type"
// @Param payload body dto.BulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /records/{type}/bulk [post]
func (h *RecordHandler) Bulk(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	var req dto.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid bulk payload"))
		return
	}

	result, err := h.service.BulkTransition(c.Request.Context(), actorFromContext(c), t, req.IDs, models.Action(req.Action), req.Fields)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Delete godoc
// @Summary Delete record
// @Description Detaches dependent rows and deletes the record in one transaction
// @Tags Records
// @Security BearerAuth
// @Param type path string true "Record type"
// @Param id path string true "Record id"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /records/{type}/{id} [delete]
func (h *RecordHandler) Delete(c *gin.Context) {
	t, ok := recordType(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), t, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
