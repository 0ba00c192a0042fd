package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/dto"
	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/internal/workflow"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

// MaxBulkItems bounds the ids accepted by one batch.
const MaxBulkItems = 500

// BulkTransition applies one action to many records of t in a single
// transaction. Items failing policy or the state machine are reported and
// skipped; ids that do not resolve in the actor's tenant are left out of the
// result entirely. A storage failure rolls the whole batch back.
func (s *LifecycleService) BulkTransition(ctx context.Context, actor *models.ActorContext, t models.RecordType, ids []string, action models.Action, fields json.RawMessage) (result *dto.BulkResult, err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.BulkTransition", t, action)
	span.SetAttributes(attribute.Int("bulk.requested", len(ids)))
	defer func() { s.finish(span, t, action, err) }()

	scope, err := tenancy.FromActor(actor)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids must not be empty")
	}
	if len(ids) > MaxBulkItems {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d ids per batch", MaxBulkItems))
	}

	var (
		machine *workflow.Machine
		input   dto.RecordInput
	)
	if action == models.ActionDelete {
		if _, err := workflow.For(t); err != nil {
			return nil, err
		}
	} else if machine, input, err = s.prepare(t, action, fields); err != nil {
		return nil, err
	}

	result = &dto.BulkResult{Succeeded: []string{}, Rejected: []dto.BulkRejection{}}
	candidates := uniqueIDs(ids)

	start := time.Now()
	err = database.WithTx(ctx, s.records.DB(), func(tx *sqlx.Tx) error {
		states, err := s.records.LockStates(ctx, tx, scope, t, candidates)
		if err != nil {
			return err
		}
		for i := range states {
			state := &states[i]
			itemErr, err := s.bulkItem(ctx, tx, scope, actor, machine, t, state, action, input)
			if err != nil {
				return err
			}
			if itemErr != nil {
				result.Rejected = append(result.Rejected, dto.BulkRejection{ID: state.ID, Code: itemErr.Code, Message: itemErr.Message})
				continue
			}
			result.Succeeded = append(result.Succeeded, state.ID)
		}
		return nil
	})
	s.metrics.ObserveTransaction("bulk:"+string(action)+":"+string(t), time.Since(start))
	if err != nil {
		return nil, appErrors.Storage(err, fmt.Sprintf("failed to %s %s batch", action, t))
	}

	s.metrics.RecordBulk(t, action, len(result.Succeeded), len(result.Rejected))
	if len(result.Succeeded) > 0 {
		s.invalidate(ctx, scope, t)
	}
	s.logger.Info("bulk transition applied",
		zap.String("type", string(t)),
		zap.String("action", string(action)),
		zap.Int("requested", len(ids)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// bulkItem runs one item. A typed client error raised while planning is the
// item's rejection; a failed write aborts the batch.
func (s *LifecycleService) bulkItem(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, actor *models.ActorContext, machine *workflow.Machine, t models.RecordType, state *models.RecordState, action models.Action, input dto.RecordInput) (*appErrors.Error, error) {
	if action == models.ActionDelete {
		if err := authorizeDelete(actor, t, state); err != nil {
			return rejection(err)
		}
		_, err := s.deleteLocked(ctx, q, scope, t, state.ID)
		return nil, err
	}
	change, err := s.plan(ctx, q, scope, actor, machine, state, action, input)
	if err != nil {
		return rejection(err)
	}
	return nil, s.write(ctx, q, scope, t, state, change)
}

func rejection(err error) (*appErrors.Error, error) {
	appErr := asAppError(err)
	if appErr == nil || appErr.Status >= 500 || appErr.Code == appErrors.ErrStorageConflict.Code {
		return nil, err
	}
	return appErr, nil
}

// uniqueIDs collapses duplicates and drops ids that cannot name a row.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		id := parsed.String()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
