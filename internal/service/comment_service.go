package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

const anonymousAuthor = "Anonymous"

type tenantScopeResolver interface {
	ForSlug(ctx context.Context, slug string) (tenancy.Scope, error)
}

type commentCreator interface {
	CreateInScope(ctx context.Context, scope tenancy.Scope, actor *models.ActorContext, t models.RecordType, input dto.RecordInput) (string, error)
}

// CommentService accepts public comments on published news items.
type CommentService struct {
	tenants   tenantScopeResolver
	records   commentCreator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(tenants tenantScopeResolver, records commentCreator, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CommentService{tenants: tenants, records: records, validator: validate, logger: logger}
}

// Submit stores a pending comment on news item newsID of the tenant named by
// slug. actor is nil for anonymous visitors; a signed-in actor may only
// comment within their own tenant.
func (s *CommentService) Submit(ctx context.Context, slug string, actor *models.ActorContext, newsID string, req dto.CommentRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err, "invalid comment payload")
	}
	scope, err := s.tenants.ForSlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if actor != nil && actor.TenantID != scope.TenantID() {
		return "", appErrors.ErrTenantMismatch
	}
	newsID, err = normalizeID(models.RecordNewsItem, newsID)
	if err != nil {
		return "", err
	}

	author := strings.TrimSpace(req.AuthorName)
	if author == "" && actor != nil {
		author = actor.FullName
	}
	if author == "" {
		author = anonymousAuthor
	}
	body := strings.TrimSpace(req.Body)
	input := &dto.NewsCommentInput{NewsID: &newsID, AuthorName: &author, Body: &body}

	id, err := s.records.CreateInScope(ctx, scope, actor, models.RecordNewsComment, input)
	if err != nil {
		return "", err
	}
	s.logger.Info("comment submitted",
		zap.String("tenant_id", scope.TenantID()),
		zap.String("news_id", newsID),
		zap.Bool("anonymous", actor == nil),
	)
	return id, nil
}
