package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-lifecycle-api/internal/dependency"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type dependencyStore interface {
	ColumnExists(ctx context.Context, q sqlx.ExtContext, table, column string) (bool, error)
	Detach(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, ref dependency.Reference, targetID string, successorID *string) (int64, error)
}

// DetachStep is the result of one registry reference.
type DetachStep struct {
	Reference string            `json:"reference"`
	Action    dependency.Action `json:"action"`
	Rows      int64             `json:"rows"`
	Skipped   bool              `json:"skipped,omitempty"`
}

// DetachReport summarises what a delete rewrote before removing its row.
type DetachReport struct {
	Entity   dependency.Entity `json:"entity"`
	TargetID string            `json:"target_id"`
	Steps    []DetachStep      `json:"steps"`
}

// Rows sums the rows touched across every step.
func (r *DetachReport) Rows() int64 {
	var total int64
	for _, step := range r.Steps {
		total += step.Rows
	}
	return total
}

// DependencyResolver detaches registry references inside the caller's delete
// transaction.
type DependencyResolver struct {
	registry *dependency.Registry
	store    dependencyStore
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDependencyResolver constructs the resolver.
func NewDependencyResolver(registry *dependency.Registry, store dependencyStore, metrics *MetricsService, logger *zap.Logger) *DependencyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DependencyResolver{registry: registry, store: store, metrics: metrics, logger: logger}
}

// Resolve rewrites every reference to targetID. Absent optional references
// are skipped; an absent required reference or any failed statement aborts
// with STORAGE_CONFLICT and the caller's transaction must roll back.
func (r *DependencyResolver) Resolve(ctx context.Context, q sqlx.ExtContext, scope tenancy.Scope, entity dependency.Entity, targetID string, successorID *string) (*DetachReport, error) {
	report := &DetachReport{Entity: entity, TargetID: targetID}

	for _, ref := range r.registry.References(entity) {
		present, err := r.present(ctx, q, ref)
		if err != nil {
			return nil, appErrors.Storage(err, fmt.Sprintf("failed to inspect %s", ref))
		}
		if !present {
			if !ref.Optional {
				return nil, appErrors.Clone(appErrors.ErrStorageConflict,
					fmt.Sprintf("required reference %s is missing from the schema", ref))
			}
			report.Steps = append(report.Steps, DetachStep{Reference: ref.String(), Action: ref.Action, Skipped: true})
			r.metrics.RecordDetach(string(entity), ref.Table, "skipped")
			continue
		}

		var successor *string
		if ref.Action == dependency.ActionReassign {
			successor = successorID
		}
		rows, err := r.store.Detach(ctx, q, scope, ref, targetID, successor)
		if err != nil {
			return nil, appErrors.Storage(err, fmt.Sprintf("failed to detach %s", ref))
		}
		report.Steps = append(report.Steps, DetachStep{Reference: ref.String(), Action: ref.Action, Rows: rows})
		r.metrics.RecordDetach(string(entity), ref.Table, string(ref.Action))
	}

	r.logger.Debug("dependencies detached",
		zap.String("entity", string(entity)),
		zap.String("target_id", targetID),
		zap.Int64("rows", report.Rows()),
	)
	return report, nil
}

// present requires both the referencing column and a tenant_id column, since
// every detach statement is tenant scoped.
func (r *DependencyResolver) present(ctx context.Context, q sqlx.ExtContext, ref dependency.Reference) (bool, error) {
	ok, err := r.store.ColumnExists(ctx, q, ref.Table, ref.Column)
	if err != nil || !ok {
		return false, err
	}
	scoped, err := r.store.ColumnExists(ctx, q, ref.Table, "tenant_id")
	if err != nil {
		return false, err
	}
	if !scoped {
		return false, fmt.Errorf("%s has no tenant_id column", ref.Table)
	}
	return true, nil
}
