package store

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type TargetRepository struct {
	pool *pgxpool.Pool
}

var targetHostsTable = goqu.T("target_hosts")

func (r *TargetRepository) Create(ctx *hscontext.Context, t *model.TargetHost) error {
	sql, args, err := dialect.Insert(targetHostsTable).Rows(goqu.Record{
		"host_name":         t.HostName,
		"project_id":        t.ProjectID,
		"type":              t.Type,
		"role_name":         t.RoleName,
		"executable_path":   t.ExecutablePath,
		"executable_pid":    t.ExecutablePID,
		"ssh_identity":      t.SSHIdentity,
		"user_name":         t.UserName,
		"sampling_interval": t.SamplingInterval,
		"active":            t.Active,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&t.ID)
}

// ListByProject returns every target host configured for a project,
// regardless of whether monitoring is currently active.
func (r *TargetRepository) ListByProject(ctx *hscontext.Context, projectID int64) ([]model.TargetHost, error) {
	sql, args, err := dialect.From(targetHostsTable).
		Select("id", "host_name", "project_id", "type", "role_name", "executable_path",
			"executable_pid", "ssh_identity", "user_name", "sampling_interval", "active").
		Where(goqu.C("project_id").Eq(projectID)).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TargetHost
	for rows.Next() {
		var t model.TargetHost
		if err := rows.Scan(&t.ID, &t.HostName, &t.ProjectID, &t.Type, &t.RoleName, &t.ExecutablePath,
			&t.ExecutablePID, &t.SSHIdentity, &t.UserName, &t.SamplingInterval, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetMonitorState records the monitor's on-host process: active flag plus
// the installed executable path and its running pid, if any.
func (r *TargetRepository) SetMonitorState(ctx *hscontext.Context, id int64, active bool, executablePath *string, pid *int) error {
	sql, args, err := dialect.Update(targetHostsTable).Set(goqu.Record{
		"active":          active,
		"executable_path": executablePath,
		"executable_pid":  pid,
	}).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

func (r *TargetRepository) Delete(ctx *hscontext.Context, id int64) error {
	sql, args, err := dialect.Delete(targetHostsTable).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}
