// Command migrate manages the catalog schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/eshop/backend/internal/infrastructure/config"
	"github.com/eshop/backend/internal/infrastructure/logger"
	"github.com/eshop/backend/internal/infrastructure/migration"
	"github.com/eshop/backend/migrations"
)

const usage = `usage: migrate [-path dir] [-log-level level] <command> [arg]

  up                apply pending migrations
  down              roll back every migration
  step <n>          apply n migrations, negative n rolls back
  force <version>   mark version applied to clear a dirty state
  version           print the applied version
  create <name>     write an empty up/down pair into -path (default ./migrations)
  list              list the known migrations
`

// dbCommands need a migrator bound to the configured database.
var dbCommands = map[string]func(m *migration.Migrator, arg string, log *zap.Logger) error{
	"up":   func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Down() },
	"step": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("step needs a count: %w", err)
		}
		return m.Steps(n)
	},
	"force": func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force needs a version: %w", err)
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err == nil {
			log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		}
		return err
	},
}

func main() {
	dir := flag.String("path", "", "migrations directory, the embedded set when empty")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := flag.Arg(0), flag.Arg(1)

	cfg := logger.DefaultConfig()
	cfg.Level = *level
	cfg.TimeFormat = "15:04:05"
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(command, arg, *dir, log); err != nil {
		log.Fatal("migrate failed", zap.String("command", command), zap.Error(err))
	}
}

func run(command, arg, dir string, log *zap.Logger) error {
	switch command {
	case "create":
		if arg == "" {
			return errors.New("create needs a name")
		}
		if dir == "" {
			dir = "migrations"
		}
		up, down, err := migration.Create(dir, arg)
		if err != nil {
			return err
		}
		log.Info("migration created", zap.String("up", up), zap.String("down", down))
		return nil
	case "list":
		var src fs.FS = migrations.FS
		if dir != "" {
			src = os.DirFS(dir)
		}
		list, err := migration.List(src)
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Printf("%06d  %-40s down=%t\n", m.Version, m.Name, m.HasDown)
		}
		return nil
	}

	cmd, ok := dbCommands[command]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", appCfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if dir != "" {
		m, err = migration.NewFromDir(db, dir, log)
	} else {
		m, err = migration.New(db, migrations.FS, log)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	return cmd(m, arg, log)
}
