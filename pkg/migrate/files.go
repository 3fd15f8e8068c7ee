package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var errNoMigrations = errors.New("no migrations found")

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
	sqlFileRe      = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// migrationFile is one validated entry of a migrations directory.
type migrationFile struct {
	version int64
	name    string
}

// ValidateDir checks dir, or the embedded set when dir is EmbeddedDir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	fsys, root := sourceFS(dir)
	_, err := listMigrations(fsys, root)
	return err
}

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<name>.sql with empty Up
// and Down blocks. The new version always sorts after the existing ones.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" || dir == EmbeddedDir {
		return "", fmt.Errorf("a writable dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := listMigrations(os.DirFS(dir), ".")
	if err != nil && !errors.Is(err, errNoMigrations) {
		return "", err
	}
	version := nextVersion(time.Now().UTC(), existing)
	fullpath := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, safe))

	body := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %s
-- +goose StatementEnd
`, safe, safe)
	if err := os.WriteFile(fullpath, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sourceFS(dir string) (fs.FS, string) {
	if dir == EmbeddedDir {
		return embedded, "migrations"
	}
	return os.DirFS(dir), "."
}

// listMigrations returns the .sql files under root sorted by version and
// fails on the first malformed or duplicate file.
func listMigrations(fsys fs.FS, root string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", root, err)
	}

	var files []migrationFile
	seen := map[int64]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name)))
		if err != nil {
			return nil, fmt.Errorf("read file %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(b), marker) {
				return nil, fmt.Errorf("migration %q missing %q", name, marker)
			}
		}
		files = append(files, migrationFile{version: version, name: name})
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %q", errNoMigrations, root)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// nextVersion uses the clock unless an existing file already claims that
// second or a later one.
func nextVersion(now time.Time, existing []migrationFile) int64 {
	version, _ := strconv.ParseInt(now.Format(versionLayout), 10, 64)
	if n := len(existing); n > 0 && existing[n-1].version >= version {
		return existing[n-1].version + 1
	}
	return version
}
