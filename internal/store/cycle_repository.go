package store

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type CycleRepository struct {
	pool *pgxpool.Pool
}

var executionCyclesTable = goqu.T("execution_cycles")

// Start inserts a new execution cycle in the "started" state. The unique
// partial index one_started_cycle_per_project enforces exclusivity at the database
// layer; a conflicting insert surfaces as hserrors.ExecutionCycleExistsException
// instead of a raw constraint-violation error.
func (r *CycleRepository) Start(ctx *hscontext.Context, c *model.ExecutionCycle) error {
	sql, args, err := dialect.Insert(executionCyclesTable).Rows(goqu.Record{
		"project_id":    c.ProjectID,
		"status":        string(model.CycleStarted),
		"started_at":    c.StartedAt,
		"threads_count": c.ThreadsCount,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&c.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &hserrors.ExecutionCycleExistsException{ProjectID: c.ProjectID}
		}
		return err
	}
	c.Status = model.CycleStarted
	return nil
}

// CreateImported inserts a cycle directly in the "stopped" state, for
// result data imported from outside the normal start/stop flow rather than
// collected from agents. Safe against one_started_cycle_per_project, which
// only constrains status="started" rows.
func (r *CycleRepository) CreateImported(ctx *hscontext.Context, projectID int64, threadsCount int) (*model.ExecutionCycle, error) {
	now := time.Now()
	c := &model.ExecutionCycle{
		ProjectID:    projectID,
		Status:       model.CycleStopped,
		StartedAt:    now,
		StoppedAt:    &now,
		ThreadsCount: threadsCount,
	}
	sql, args, err := dialect.Insert(executionCyclesTable).Rows(goqu.Record{
		"project_id":    c.ProjectID,
		"status":        string(model.CycleStopped),
		"started_at":    c.StartedAt,
		"stopped_at":    c.StoppedAt,
		"threads_count": c.ThreadsCount,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// Transition advances a cycle to status, stamping stopped_at for any
// terminal-bound transition.
func (r *CycleRepository) Transition(ctx *hscontext.Context, id int64, status model.CycleStatus, stoppedAt *time.Time) error {
	sql, args, err := dialect.Update(executionCyclesTable).Set(goqu.Record{
		"status":     string(status),
		"stopped_at": stoppedAt,
	}).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// GetStarted returns the project's currently-started cycle, or
// hserrors.ExecutionCycleNotExistsException if none is running.
func (r *CycleRepository) GetStarted(ctx *hscontext.Context, projectID int64) (*model.ExecutionCycle, error) {
	sql, args, err := dialect.From(executionCyclesTable).
		Select("id", "project_id", "status", "started_at", "stopped_at", "threads_count").
		Where(goqu.C("project_id").Eq(projectID), goqu.C("status").Eq(string(model.CycleStarted))).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var c model.ExecutionCycle
	var status string
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&c.ID, &c.ProjectID, &status, &c.StartedAt, &c.StoppedAt, &c.ThreadsCount); err != nil {
		if IsNotFound(err) {
			return nil, &hserrors.ExecutionCycleNotExistsException{ProjectID: projectID}
		}
		return nil, err
	}
	c.Status = model.CycleStatus(status)
	return &c, nil
}

// GetByID loads a single cycle by primary key.
func (r *CycleRepository) GetByID(ctx *hscontext.Context, id int64) (*model.ExecutionCycle, error) {
	sql, args, err := dialect.From(executionCyclesTable).
		Select("id", "project_id", "status", "started_at", "stopped_at", "threads_count").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var c model.ExecutionCycle
	var status string
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&c.ID, &c.ProjectID, &status, &c.StartedAt, &c.StoppedAt, &c.ThreadsCount); err != nil {
		return nil, err
	}
	c.Status = model.CycleStatus(status)
	return &c, nil
}

// ListByProject returns every cycle for a project, most recent first —
// used by results/status reporting.
func (r *CycleRepository) ListByProject(ctx *hscontext.Context, projectID int64) ([]model.ExecutionCycle, error) {
	sql, args, err := dialect.From(executionCyclesTable).
		Select("id", "project_id", "status", "started_at", "stopped_at", "threads_count").
		Where(goqu.C("project_id").Eq(projectID)).
		Order(goqu.C("id").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExecutionCycle
	for rows.Next() {
		var c model.ExecutionCycle
		var status string
		if err := rows.Scan(&c.ID, &c.ProjectID, &status, &c.StartedAt, &c.StoppedAt, &c.ThreadsCount); err != nil {
			return nil, err
		}
		c.Status = model.CycleStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
