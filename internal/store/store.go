// Package store is the persistent store: durable storage for projects,
// clusters, agents, execution cycles, and stats, backed by Postgres via
// pgx/v4 and queried through goqu's SQL builder, which builds SQL and
// executes it separately rather than using an ORM.
package store

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
)

var dialect = goqu.Dialect("postgres")

// Store bundles the connection pool with one repository per aggregate root.
type Store struct {
	Pool     *pgxpool.Pool
	Projects *ProjectRepository
	Clusters *ClusterRepository
	Plans    *PlanRepository
	Agents   *AgentRepository
	Targets  *TargetRepository
	Cycles   *CycleRepository
	Stats    *StatsRepository
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Pool:     pool,
		Projects: &ProjectRepository{pool: pool},
		Clusters: &ClusterRepository{pool: pool},
		Plans:    &PlanRepository{pool: pool},
		Agents:   &AgentRepository{pool: pool},
		Targets:  &TargetRepository{pool: pool},
		Cycles:   &CycleRepository{pool: pool},
		Stats:    &StatsRepository{pool: pool},
	}
}
