package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hailstorm-project/hailstorm/internal/coordinator"
	"github.com/hailstorm-project/hailstorm/internal/database"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/jtl/csv"
	"github.com/hailstorm-project/hailstorm/internal/logging"
	"github.com/hailstorm-project/hailstorm/internal/monitor"
	"github.com/hailstorm-project/hailstorm/internal/remote"
	"github.com/hailstorm-project/hailstorm/internal/report"
	"github.com/hailstorm-project/hailstorm/internal/store"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
	"github.com/hailstorm-project/hailstorm/internal/testplan/jmx"
)

// app bundles the wiring every data-touching subcommand needs: a
// Coordinator, the raw Store for project/cluster bootstrap, and the
// process-wide logger. Built once per invocation by withBootstrap and
// stashed on the command's context, so each subcommand's PreRunE hook
// wires it once rather than reconstructing it ad hoc inside RunE.
type app struct {
	Coordinator *coordinator.Coordinator
	Store       *store.Store
	Log         zerolog.Logger
}

type appKey struct{}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// hsContext builds the *hscontext.Context a Coordinator call takes, from
// the app stashed on cmd's context by withBootstrap.
func hsContext(cmd *cobra.Command) (*hscontext.Context, *app) {
	a := appFrom(cmd)
	return hscontext.New(cmd.Context(), a.Log), a
}

// resolveProjectID looks up a project's numeric id from its slugified code,
// the identifier every subcommand's positional argument takes since codes
// are what operators actually type.
func resolveProjectID(ctx *hscontext.Context, a *app, code string) (int64, error) {
	project, err := a.Store.Projects.GetByCode(ctx, model.SlugifyProjectCode(code))
	if err != nil {
		return 0, fmt.Errorf("looking up project %q: %w", code, err)
	}
	return project.ID, nil
}

// withBootstrap is every data-touching subcommand's PreRunE: it connects
// to Postgres, applies migrations, and wires the Coordinator lazily, so a
// command like `version` that needs neither never pays for a connection
// (mirrors armadactl's per-subcommand PreRunE rather than a
// PersistentPreRunE that would run unconditionally for every subcommand).
func withBootstrap(cmd *cobra.Command, args []string) error {
	ctx, a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	cmd.SetContext(withApp(ctx.Context, a))
	return nil
}

// bindPersistentFlags registers the connection/runtime flags every
// subcommand shares, bound to viper so HAILSTORM_-prefixed environment
// variables and a config file can supply them too.
func bindPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("db-host", "localhost", "Postgres host")
	flags.Int("db-port", 5432, "Postgres port")
	flags.String("db-user", "hailstorm", "Postgres user")
	flags.String("db-password", "", "Postgres password")
	flags.String("db-name", "hailstorm", "Postgres database name")
	flags.String("db-sslmode", "disable", "Postgres sslmode")
	flags.String("workspace-dir", "./hailstorm-workspace", "Local directory for per-cycle result workspaces")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.String("log-format", "colour", "Log format: colour, text, json")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("HAILSTORM")
	viper.AutomaticEnv()
}

// bootstrap wires the process's Postgres pool, applies pending migrations,
// and constructs the Coordinator every subcommand drives. Grounded on the
// teacher's cmd/armada main.go startup sequence (configure logging, load
// config, open the store) run from each subcommand's PreRunE via
// withBootstrap instead of a bespoke main func, since those subcommands all
// need the same dependencies.
func bootstrap(cmd *cobra.Command) (*hscontext.Context, *app, error) {
	logFormat := logging.FormatColour
	switch viper.GetString("log-format") {
	case "json":
		logFormat = logging.FormatJSON
	case "text":
		logFormat = logging.FormatText
	}
	logCfg := logging.DefaultConfig()
	logCfg.Console.Level = viper.GetString("log-level")
	logCfg.Console.Format = string(logFormat)
	logging.MustConfigure(logCfg)

	ctx := hscontext.New(cmd.Context(), logging.Root)

	dbCfg := database.Config{
		Host:     viper.GetString("db-host"),
		Port:     viper.GetInt("db-port"),
		User:     viper.GetString("db-user"),
		Password: viper.GetString("db-password"),
		DBName:   viper.GetString("db-name"),
		SSLMode:  viper.GetString("db-sslmode"),
	}
	pool, err := database.OpenPool(ctx.Context, dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	migrations, err := database.LoadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}
	execFn := func(c context.Context, sql string, args ...interface{}) error {
		_, err := pool.Exec(c, sql, args...)
		return err
	}
	queryRowFn := func(c context.Context, sql string, args ...interface{}) database.ScanFunc {
		row := pool.QueryRow(c, sql, args...)
		return row.Scan
	}
	if err := database.UpdateDatabase(ctx.Context, execFn, queryRowFn, migrations); err != nil {
		return nil, nil, fmt.Errorf("applying migrations: %w", err)
	}

	s := store.New(pool)

	executorFor := func(target *model.TargetHost) (*remote.Executor, error) {
		identity, err := os.ReadFile(target.SSHIdentity)
		if err != nil {
			return nil, fmt.Errorf("reading ssh identity for target host %s: %w", target.HostName, err)
		}
		return remote.NewExecutor(remote.Host{
			Address:     target.HostName,
			UserName:    target.UserName,
			IdentityKey: identity,
		})
	}
	monitorBackend := monitor.NewNmonBackend(executorFor)
	reportAggregator := report.New(s.Cycles, s.Stats, csv.New())
	coord := coordinator.New(s, jmx.New(), monitorBackend, reportAggregator, viper.GetString("workspace-dir"))

	return ctx, &app{Coordinator: coord, Store: s, Log: logging.Root}, nil
}
