package store

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

var projectsTable = goqu.T("projects")

// Create inserts p and populates p.ID.
func (r *ProjectRepository) Create(ctx *hscontext.Context, p *model.Project) error {
	sql, args, err := dialect.Insert(projectsTable).Rows(goqu.Record{
		"project_code":              p.Code,
		"max_threads_per_agent":     p.MaxThreadsPerAgent,
		"master_slave_mode":         p.MasterSlaveMode,
		"samples_breakup_interval":  p.SamplesBreakupInterval,
		"serial_version":            p.SerialVersion,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&p.ID)
}

// GetByCode loads a project by its slugified code, or returns pgx.ErrNoRows.
func (r *ProjectRepository) GetByCode(ctx *hscontext.Context, code string) (*model.Project, error) {
	sql, args, err := dialect.From(projectsTable).
		Select("id", "project_code", "max_threads_per_agent", "master_slave_mode", "samples_breakup_interval", "serial_version").
		Where(goqu.C("project_code").Eq(code)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var p model.Project
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&p.ID, &p.Code, &p.MaxThreadsPerAgent, &p.MasterSlaveMode, &p.SamplesBreakupInterval, &p.SerialVersion); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID loads a project by primary key.
func (r *ProjectRepository) GetByID(ctx *hscontext.Context, id int64) (*model.Project, error) {
	sql, args, err := dialect.From(projectsTable).
		Select("id", "project_code", "max_threads_per_agent", "master_slave_mode", "samples_breakup_interval", "serial_version").
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var p model.Project
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&p.ID, &p.Code, &p.MaxThreadsPerAgent, &p.MasterSlaveMode, &p.SamplesBreakupInterval, &p.SerialVersion); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetSerialVersion updates serial_version, or clears it when version is nil
//.
func (r *ProjectRepository) SetSerialVersion(ctx *hscontext.Context, projectID int64, version *string) error {
	sql, args, err := dialect.Update(projectsTable).
		Set(goqu.Record{"serial_version": version}).
		Where(goqu.C("id").Eq(projectID)).
		Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// PurgeAll deletes the project row; the schema's ON DELETE CASCADE removes
// clusters, plans, target hosts, agents, cycles, and stats transitively
//).
func (r *ProjectRepository) PurgeAll(ctx *hscontext.Context, projectID int64) error {
	sql, args, err := dialect.Delete(projectsTable).Where(goqu.C("id").Eq(projectID)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}
