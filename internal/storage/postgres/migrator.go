package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsGlob  = "sql/migrations/*.sql"
	schemaLockScope = "checkout.schema_migrations"
	lockTimeout     = 5 * time.Second

	schemaTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

// schemaLockID — ключ pg_advisory_lock, производный от имени сервиса:
// конкурирующие инстансы checkout не применяют миграции одновременно,
// а чужие advisory-замки в той же базе не пересекаются с нашим.
var schemaLockID = int64(crc32.ChecksumIEEE([]byte(schemaLockScope)))

// Имя файла миграции: <версия>_<имя>.<up|down>.sql, обе половины обязательны.
var migrationFileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// migration — пара up/down одной версии схемы.
type migration struct {
	version int64
	name    string
	upSQL   string
	downSQL string
}

// SchemaStatus описывает текущее состояние схемы базы.
type SchemaStatus struct {
	// Version — наибольшая применённая версия, 0 для пустой схемы.
	Version int64
	// Applied — количество применённых миграций.
	Applied int
}

// MigrateUp применяет недостающие up-миграции по порядку версий.
// steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		migrations, err := readMigrations(migrationsFS)
		if err != nil {
			return err
		}

		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, m := range migrations {
			if applied[m.version] {
				continue
			}
			if err := runMigration(ctx, conn, m, "up"); err != nil {
				return err
			}
			done++
			if steps > 0 && done >= steps {
				break
			}
		}
		return nil
	})
}

// MigrateDown откатывает steps последних применённых миграций.
// steps<=0 трактуется как один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	return s.withSchemaLock(ctx, func(conn *sql.Conn) error {
		migrations, err := readMigrations(migrationsFS)
		if err != nil {
			return err
		}
		byVersion := make(map[int64]migration, len(migrations))
		for _, m := range migrations {
			byVersion[m.version] = m
		}

		versions, err := appliedVersionsNewestFirst(ctx, conn, steps)
		if err != nil {
			return err
		}

		for _, version := range versions {
			m, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("applied version %d has no migration file to roll back", version)
			}
			if err := runMigration(ctx, conn, m, "down"); err != nil {
				return err
			}
		}
		return nil
	})
}

// SchemaStatus возвращает версию схемы и число применённых миграций.
func (s *Store) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	if s == nil || s.db == nil {
		return SchemaStatus{}, errStoreNotInitialized
	}

	queryCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, schemaTableDDL); err != nil {
		return SchemaStatus{}, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	var status SchemaStatus
	err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&status.Version, &status.Applied)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("query schema status: %w", err)
	}

	return status, nil
}

// withSchemaLock выполняет fn на выделенном соединении под advisory-замком
// схемы, предварительно создав таблицу учёта миграций.
func (s *Store) withSchemaLock(ctx context.Context, fn func(*sql.Conn) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		// Замок держится на соединении: снимаем его даже при отменённом ctx.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, schemaLockID)
	}()

	if _, err := conn.ExecContext(ctx, schemaTableDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	return fn(conn)
}

// runMigration исполняет одну половину миграции и запись в schema_migrations
// в общей транзакции: схема и учёт меняются атомарно.
func runMigration(ctx context.Context, conn *sql.Conn, m migration, direction string) error {
	body := m.upSQL
	bookkeeping := `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`
	args := []any{m.version, m.name}
	if direction == "down" {
		body = m.downSQL
		bookkeeping = `DELETE FROM schema_migrations WHERE version = $1`
		args = []any{m.version}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %d_%s: %w", direction, m.version, m.name, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply %s migration %d_%s: %w", direction, m.version, m.name, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.version, m.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.version, m.name, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}

func appliedVersionsNewestFirst(ctx context.Context, conn *sql.Conn, limit int) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT version
		FROM schema_migrations
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query versions to roll back: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version to roll back: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions to roll back: %w", err)
	}
	return versions, nil
}

// readMigrations собирает пары up/down из файловой системы и сортирует их
// по версии. Непарная, пустая или дублирующаяся половина — ошибка.
func readMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		parts := migrationFileRe.FindStringSubmatch(base)
		if parts == nil {
			return nil, fmt.Errorf("migration file %s does not match <version>_<name>.<up|down>.sql", base)
		}

		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", base, err)
		}
		name, direction := parts[2], parts[3]

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file %s is empty", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version, name: name}
			byVersion[version] = m
		} else if m.name != name {
			return nil, fmt.Errorf("version %d is named both %q and %q", version, m.name, name)
		}

		switch direction {
		case "up":
			if m.upSQL != "" {
				return nil, fmt.Errorf("duplicate up file for version %d", version)
			}
			m.upSQL = body
		case "down":
			if m.downSQL != "" {
				return nil, fmt.Errorf("duplicate down file for version %d", version)
			}
			m.downSQL = body
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.upSQL == "" || m.downSQL == "" {
			return nil, fmt.Errorf("migration %d_%s is missing its up or down half", m.version, m.name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })

	return migrations, nil
}
