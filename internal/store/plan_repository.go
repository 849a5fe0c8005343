package store

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type PlanRepository struct {
	pool *pgxpool.Pool
}

var plansTable = goqu.T("jmeter_plans")

// Upsert creates the plan if (project, test_plan_name) is new, or updates
// its content hash/properties/active flag if it already exists: created on
// setup, marked inactive when removed from config but preserved for
// historical cycles.
func (r *PlanRepository) Upsert(ctx *hscontext.Context, plan *model.JmeterPlan) error {
	properties, err := yaml.Marshal(plan.Properties)
	if err != nil {
		return errors.Wrap(err, "marshalling plan properties")
	}

	dataFiles, err := yaml.Marshal(plan.DataFiles)
	if err != nil {
		return errors.Wrap(err, "marshalling plan data files")
	}

	existing, err := r.getByName(ctx, plan.ProjectID, plan.TestPlanName)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing != nil {
		plan.ID = existing.ID
		sql, args, err := dialect.Update(plansTable).Set(goqu.Record{
			"content_hash":         plan.ContentHash,
			"active":               true,
			"properties":           string(properties),
			"latest_threads_count": plan.LatestThreadsCount,
			"local_path":           plan.LocalPath,
			"data_files":           string(dataFiles),
		}).Where(goqu.C("id").Eq(plan.ID)).Prepared(true).ToSQL()
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = r.pool.Exec(ctx.Context, sql, args...)
		return err
	}

	sql, args, err := dialect.Insert(plansTable).Rows(goqu.Record{
		"project_id":            plan.ProjectID,
		"test_plan_name":        plan.TestPlanName,
		"content_hash":          plan.ContentHash,
		"active":                true,
		"properties":            string(properties),
		"latest_threads_count":  plan.LatestThreadsCount,
		"local_path":            plan.LocalPath,
		"data_files":            string(dataFiles),
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&plan.ID)
}

// GetByName looks up a project's plan by its test_plan_name, the identifier
// every subcommand that needs a specific plan (rather than "all active
// plans") takes.
func (r *PlanRepository) GetByName(ctx *hscontext.Context, projectID int64, name string) (*model.JmeterPlan, error) {
	return r.getByName(ctx, projectID, name)
}

func (r *PlanRepository) getByName(ctx *hscontext.Context, projectID int64, name string) (*model.JmeterPlan, error) {
	sql, args, err := dialect.From(plansTable).
		Select("id", "project_id", "test_plan_name", "content_hash", "active", "properties", "latest_threads_count", "local_path", "data_files").
		Where(goqu.C("project_id").Eq(projectID), goqu.C("test_plan_name").Eq(name)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return r.scanOne(ctx, sql, args...)
}

// MarkInactive flips a plan's active flag to false when it is removed from
// config, without deleting it (historical cycles still reference it).
func (r *PlanRepository) MarkInactive(ctx *hscontext.Context, id int64) error {
	sql, args, err := dialect.Update(plansTable).Set(goqu.Record{"active": false}).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// ListActive returns every plan currently active for a project.
func (r *PlanRepository) ListActive(ctx *hscontext.Context, projectID int64) ([]model.JmeterPlan, error) {
	sql, args, err := dialect.From(plansTable).
		Select("id", "project_id", "test_plan_name", "content_hash", "active", "properties", "latest_threads_count", "local_path", "data_files").
		Where(goqu.C("project_id").Eq(projectID), goqu.C("active").Eq(true)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JmeterPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PlanRepository) scanOne(ctx *hscontext.Context, sql string, args ...interface{}) (*model.JmeterPlan, error) {
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	return scanPlan(row)
}

func scanPlan(row rowScanner) (*model.JmeterPlan, error) {
	var p model.JmeterPlan
	var properties, localPath, dataFiles *string
	if err := row.Scan(&p.ID, &p.ProjectID, &p.TestPlanName, &p.ContentHash, &p.Active, &properties, &p.LatestThreadsCount, &localPath, &dataFiles); err != nil {
		return nil, err
	}
	if properties != nil {
		if err := yaml.Unmarshal([]byte(*properties), &p.Properties); err != nil {
			return nil, errors.Wrap(err, "unmarshalling plan properties")
		}
	}
	if localPath != nil {
		p.LocalPath = *localPath
	}
	if dataFiles != nil {
		if err := yaml.Unmarshal([]byte(*dataFiles), &p.DataFiles); err != nil {
			return nil, errors.Wrap(err, "unmarshalling plan data files")
		}
	}
	return &p, nil
}
