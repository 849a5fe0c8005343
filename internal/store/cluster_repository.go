package store

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

type ClusterRepository struct {
	pool *pgxpool.Pool
}

var (
	clustersTable      = goqu.T("clusters")
	amazonCloudsTable  = goqu.T("amazon_clouds")
	dataCentersTable   = goqu.T("data_centers")
)

// CreateAmazonCloud creates the abstract cluster row and its concrete
// amazon_clouds row in one call, populating both ids.
func (r *ClusterRepository) CreateAmazonCloud(ctx *hscontext.Context, projectID int64, a *model.AmazonCloud) error {
	sql, args, err := dialect.Insert(clustersTable).
		Rows(goqu.Record{"project_id": projectID, "cluster_type": string(model.ClusterTypeAmazonCloud)}).
		Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	var clusterID int64
	if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&clusterID); err != nil {
		return err
	}
	a.ClusterID = clusterID

	sql, args, err = dialect.Insert(amazonCloudsTable).Rows(goqu.Record{
		"cluster_id":            clusterID,
		"access_key":            a.AccessKey,
		"secret_key":            a.SecretKey,
		"ssh_identity":          a.SSHIdentity,
		"region":                a.Region,
		"zone":                  a.Zone,
		"instance_type":         a.InstanceType,
		"agent_ami":             a.AgentAMI,
		"active":                a.Active,
		"user_name":             a.UserName,
		"security_group":        a.SecurityGroup,
		"autogenerated_ssh_key": a.AutogeneratedSSHKey,
		"ssh_port":              a.SSHPort,
		"max_threads_per_agent": a.MaxThreadsPerAgent,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&a.ID)
}

// CreateDataCenter mirrors CreateAmazonCloud for the fixed backend.
func (r *ClusterRepository) CreateDataCenter(ctx *hscontext.Context, projectID int64, d *model.DataCenter) error {
	sql, args, err := dialect.Insert(clustersTable).
		Rows(goqu.Record{"project_id": projectID, "cluster_type": string(model.ClusterTypeDataCenter)}).
		Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	var clusterID int64
	if err := r.pool.QueryRow(ctx.Context, sql, args...).Scan(&clusterID); err != nil {
		return err
	}
	d.ClusterID = clusterID

	sql, args, err = dialect.Insert(dataCentersTable).Rows(goqu.Record{
		"cluster_id":   clusterID,
		"user_name":    d.UserName,
		"ssh_identity": d.SSHIdentity,
		"machines":     strings.Join(d.Machines, ","),
		"title":        d.Title,
	}).Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	return r.pool.QueryRow(ctx.Context, sql, args...).Scan(&d.ID)
}

// ListClusters returns the abstract cluster rows for a project.
func (r *ClusterRepository) ListClusters(ctx *hscontext.Context, projectID int64) ([]model.Cluster, error) {
	sql, args, err := dialect.From(clustersTable).
		Select("id", "project_id", "cluster_type").
		Where(goqu.C("project_id").Eq(projectID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rows, err := r.pool.Query(ctx.Context, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Cluster
	for rows.Next() {
		var c model.Cluster
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.ClusterType); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetAmazonCloud loads the concrete amazon_clouds row for a cluster id.
func (r *ClusterRepository) GetAmazonCloud(ctx *hscontext.Context, clusterID int64) (*model.AmazonCloud, error) {
	sql, args, err := dialect.From(amazonCloudsTable).
		Select("id", "cluster_id", "access_key", "secret_key", "ssh_identity", "region", "zone",
			"instance_type", "agent_ami", "active", "user_name", "security_group",
			"autogenerated_ssh_key", "ssh_port", "max_threads_per_agent").
		Where(goqu.C("cluster_id").Eq(clusterID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var a model.AmazonCloud
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&a.ID, &a.ClusterID, &a.AccessKey, &a.SecretKey, &a.SSHIdentity, &a.Region, &a.Zone,
		&a.InstanceType, &a.AgentAMI, &a.Active, &a.UserName, &a.SecurityGroup,
		&a.AutogeneratedSSHKey, &a.SSHPort, &a.MaxThreadsPerAgent); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetDataCenter loads the concrete data_centers row for a cluster id.
func (r *ClusterRepository) GetDataCenter(ctx *hscontext.Context, clusterID int64) (*model.DataCenter, error) {
	sql, args, err := dialect.From(dataCentersTable).
		Select("id", "cluster_id", "user_name", "ssh_identity", "machines", "title").
		Where(goqu.C("cluster_id").Eq(clusterID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var d model.DataCenter
	var machines string
	row := r.pool.QueryRow(ctx.Context, sql, args...)
	if err := row.Scan(&d.ID, &d.ClusterID, &d.UserName, &d.SSHIdentity, &machines, &d.Title); err != nil {
		return nil, err
	}
	d.Machines = strings.Split(machines, ",")
	return &d, nil
}

// SetAmazonCloudAMI persists the resolved AMI id.
func (r *ClusterRepository) SetAmazonCloudAMI(ctx *hscontext.Context, id int64, ami string) error {
	sql, args, err := dialect.Update(amazonCloudsTable).
		Set(goqu.Record{"agent_ami": ami}).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.pool.Exec(ctx.Context, sql, args...)
	return err
}

// IsNotFound reports whether err is the "no matching row" sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
