package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lifecycle-api/internal/middleware"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
	"github.com/noah-isme/sma-lifecycle-api/pkg/response"
)

func actorFromContext(c *gin.Context) *models.ActorContext {
	return middleware.ActorFrom(c)
}

// recordType resolves the :type path segment ("lesson-plans", "news_item").
func recordType(c *gin.Context) (models.RecordType, bool) {
	t, ok := models.ParseRecordType(c.Param("type"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown record type"))
		return "", false
	}
	return t, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
