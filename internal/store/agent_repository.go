package store

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type AgentRepository struct {
	pool *pgxpool.Pool
}

var loadAgentsTable = goqu.T("load_agents")

func (r *AgentRepository) Create(ctx *hscontext.Context, a *model.LoadAgent) error {
	sql, args, err := dialect.Insert(loadAgentsTable).Rows(goqu.Record{
		"clusterable_id":     a.ClusterableID,
		"clusterable_type":   string(a.ClusterableType),
		"jmeter_plan_id":     a.JmeterPlanID,
		"public_ip_address":  a.PublicIPAddress,
		"private_ip_address": a.PrivateIPAddress,
		"active":             a.Active,
		"type":               string(a.Type),
		"jmeter_pid":         a.JmeterPID,
		"identifier":         a.Identifier,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&a.ID)
}

// ListByPlan returns every load agent bound to plan, across both active and
// disabled agents (the Agent Manager reconciliation algorithm needs both).
func (r *AgentRepository) ListByPlan(ctx *hscontext.Context, planID int64) ([]model.LoadAgent, error) {
	sql, args, err := dialect.From(loadAgentsTable).
		Select("id", "clusterable_id", "clusterable_type", "jmeter_plan_id", "public_ip_address",
			"private_ip_address", "active", "type", "jmeter_pid", "identifier").
		Where(goqu.C("jmeter_plan_id").Eq(planID)).
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

	var out []model.LoadAgent
	for rows.Next() {
		var a model.LoadAgent
		if err := rows.Scan(&a.ID, &a.ClusterableID, &a.ClusterableType, &a.JmeterPlanID, &a.PublicIPAddress,
			&a.PrivateIPAddress, &a.Active, &a.Type, &a.JmeterPID, &a.Identifier); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetActive flips the agent's active flag: disabled on surplus, re-enabled
// when reconciliation finds it reusable.
func (r *AgentRepository) SetActive(ctx *hscontext.Context, id int64, active bool) error {
	sql, args, err := dialect.Update(loadAgentsTable).Set(goqu.Record{"active": active}).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// SetRuntime updates the fields the Agent Manager owns during
// deploy/run/stop/collect: IPs and the JMeter process id.
func (r *AgentRepository) SetRuntime(ctx *hscontext.Context, id int64, publicIP, privateIP *string, pid *int) error {
	sql, args, err := dialect.Update(loadAgentsTable).Set(goqu.Record{
		"public_ip_address":  publicIP,
		"private_ip_address": privateIP,
		"jmeter_pid":         pid,
	}).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// SetIdentity persists the backend-assigned identifier and IPs that
// EnsureAgents resolves in memory: called at the end of reconciliation so a
// later reload (Stop, Collect, Status, Terminate) sees the real host
// instead of a blank row.
func (r *AgentRepository) SetIdentity(ctx *hscontext.Context, id int64, identifier string, publicIP, privateIP *string) error {
	sql, args, err := dialect.Update(loadAgentsTable).Set(goqu.Record{
		"identifier":         identifier,
		"public_ip_address":  publicIP,
		"private_ip_address": privateIP,
	}).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// SetType persists the Master/Slave assignment reconciliation decides in
// memory.
func (r *AgentRepository) SetType(ctx *hscontext.Context, id int64, t model.LoadAgentType) error {
	sql, args, err := dialect.Update(loadAgentsTable).Set(goqu.Record{"type": string(t)}).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// Delete removes an agent row after its backend resources have been
// released.
func (r *AgentRepository) Delete(ctx *hscontext.Context, id int64) error {
	sql, args, err := dialect.Delete(loadAgentsTable).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// CountActiveMasters counts active Master agents for (clusterID, planID),
// used to detect the MasterSlaveSwitchOnConflict.
func (r *AgentRepository) CountActiveMasters(ctx *hscontext.Context, clusterableID int64, clusterableType model.ClusterType, planID int64) (int, error) {
	sql, args, err := dialect.From(loadAgentsTable).
		Select(goqu.COUNT("*")).
		Where(
			goqu.C("clusterable_id").Eq(clusterableID),
			goqu.C("clusterable_type").Eq(string(clusterableType)),
			goqu.C("jmeter_plan_id").Eq(planID),
			goqu.C("type").Eq(string(model.LoadAgentMaster)),
			goqu.C("active").Eq(true),
		).Prepared(true).ToSQL()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	var count int
	if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
