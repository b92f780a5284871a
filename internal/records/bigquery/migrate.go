package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-review/internal/logger"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration represents a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// parseMigrationFilename returns the version and name encoded in a
// migration filename.
func parseMigrationFilename(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// renderMigration substitutes the table placeholders. The checksum is taken
// from the raw content so the same migration applied to different datasets
// is recognised as identical.
func renderMigration(content []byte, t Table) (string, string) {
	sql := string(content)
	sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", t.ProjectID)
	sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", t.DatasetID)
	sql = strings.ReplaceAll(sql, "{{TABLE_ID}}", t.TableID)
	return sql, fmt.Sprintf("%x", sha256.Sum256(content))
}

// LoadMigrations reads the embedded migrations sorted by version.
func LoadMigrations(t Table) ([]Migration, error) {
	return loadMigrations(migrationFiles, "migrations", t)
}

func loadMigrations(fsys fs.FS, dir string, t Table) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		content, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: reading %s: %w", e.Name(), err)
		}
		sql, checksum := renderMigration(content, t)
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: e.Name(),
			SQL:      sql,
			Checksum: checksum,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations and returns how many were applied.
func Migrate(ctx context.Context, client *bigquery.Client, t Table, appliedBy string) (int, error) {
	log := logger.FromContext(ctx)

	migrations, err := LoadMigrations(t)
	if err != nil {
		return 0, err
	}

	// The first migration creates schema_migrations itself.
	if len(migrations) > 0 {
		if _, err := runDML(ctx, client.Query(migrations[0].SQL)); err != nil {
			return 0, fmt.Errorf("Migrate: ensuring schema_migrations: %w", err)
		}
	}

	applied, err := appliedVersions(ctx, client, t)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("Migration already applied")
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")
		if _, err := runDML(ctx, client.Query(m.SQL)); err != nil {
			return count, fmt.Errorf("Migrate: executing %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, t, m, appliedBy); err != nil {
			return count, fmt.Errorf("Migrate: recording %s: %w", m.Filename, err)
		}
		count++
	}

	return count, nil
}

func appliedVersions(ctx context.Context, client *bigquery.Client, t Table) (map[int]bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, t.ProjectID, t.DatasetID))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}

func recordMigration(ctx context.Context, client *bigquery.Client, t Table, m Migration, appliedBy string) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, @applied_at, @checksum, @applied_by)
	`, t.ProjectID, t.DatasetID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "applied_at", Value: time.Now()},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	_, err := runDML(ctx, q)
	return err
}
