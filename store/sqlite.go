package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the file-backed Store implementation.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at the given path and
// initialises the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite: writes serialise on a single
	// connection, reads may run concurrently.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLite{db: db}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// --- Manual operations ---

func (s *SQLite) InsertManual(ctx context.Context, m Manual) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO manuals (year, make, model, uplifted, active, content_path, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.Year, m.Make, m.Model, boolToInt(m.Uplifted), boolToInt(m.Active), m.ContentPath, m.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("inserting manual: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLite) UpdateManualContent(ctx context.Context, id int64, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE manuals SET content_path = ? WHERE id = ?", path, id)
	if err != nil {
		return fmt.Errorf("updating manual content path: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeactivateManual(ctx context.Context, id int64, scope string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE manuals SET active = 0
		WHERE id = ? AND (? = '' OR owner_id = ? OR owner_id = '')
	`, id, scope, scope)
	if err != nil {
		return fmt.Errorf("deactivating manual: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetManual(ctx context.Context, id int64) (*Manual, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, year, make, model, uplifted, active, content_path, owner_id, created_at
		FROM manuals WHERE id = ?
	`, id)

	var m Manual
	var uplifted, active int
	err := row.Scan(&m.ID, &m.Year, &m.Make, &m.Model, &uplifted, &active,
		&m.ContentPath, &m.OwnerID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting manual %d: %w", id, err)
	}
	m.Uplifted = uplifted != 0
	m.Active = active != 0
	return &m, nil
}

func (s *SQLite) ListManuals(ctx context.Context, scope string) ([]Manual, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, make, model, uplifted, active, content_path, owner_id, created_at
		FROM manuals
		WHERE active = 1 AND (? = '' OR owner_id = ? OR owner_id = '')
		ORDER BY id
	`, scope, scope)
	if err != nil {
		return nil, fmt.Errorf("listing manuals: %w", err)
	}
	defer rows.Close()

	var manuals []Manual
	for rows.Next() {
		var m Manual
		var uplifted, active int
		if err := rows.Scan(&m.ID, &m.Year, &m.Make, &m.Model, &uplifted, &active,
			&m.ContentPath, &m.OwnerID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Uplifted = uplifted != 0
		m.Active = active != 0
		manuals = append(manuals, m)
	}
	return manuals, rows.Err()
}

// --- Section operations ---

func (s *SQLite) InsertSections(ctx context.Context, manualID int64, sections []Section) error {
	if len(sections) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sections (manual_id, name, first_page, length, level)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sec := range sections {
			if _, err := stmt.ExecContext(ctx, manualID, sec.Name, sec.FirstPage, sec.Length, sec.Level); err != nil {
				return fmt.Errorf("inserting section %q: %w", sec.Name, err)
			}
		}
		return nil
	})
}

func (s *SQLite) SectionsByManual(ctx context.Context, manualID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, manual_id, name, first_page, length, level
		FROM sections WHERE manual_id = ?
		ORDER BY first_page, id
	`, manualID)
	if err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}
	defer rows.Close()
	return scanSections(rows)
}

func (s *SQLite) LookupSections(ctx context.Context, f VehicleFilter, scope string) ([]Section, error) {
	year := nullInt(f.Year)
	mk := nullStr(f.Make)
	model := nullStr(f.Model)

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.manual_id, s.name, s.first_page, s.length, s.level
		FROM sections s
		JOIN manuals m ON m.id = s.manual_id
		WHERE m.active = 1
		  AND (? IS NULL OR m.year = ?)
		  AND (? IS NULL OR lower(m.make) = lower(?))
		  AND (? IS NULL OR lower(m.model) = lower(?))
		  AND (? = '' OR m.owner_id = ? OR m.owner_id = '')
		ORDER BY s.manual_id, s.first_page, s.id
	`, year, year, mk, mk, model, model, scope, scope)
	if err != nil {
		return nil, fmt.Errorf("looking up sections: %w", err)
	}
	defer rows.Close()
	return scanSections(rows)
}

// --- Image operations ---

func (s *SQLite) InsertImages(ctx context.Context, manualID int64, images []Image) error {
	if len(images) == 0 {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO images (manual_id, page, x, y, w, h)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, img := range images {
			if _, err := stmt.ExecContext(ctx, manualID, img.Page, img.X, img.Y, img.W, img.H); err != nil {
				return fmt.Errorf("inserting image on page %d: %w", img.Page, err)
			}
		}
		return nil
	})
}

func (s *SQLite) ImageCount(ctx context.Context, manualID int64) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM images WHERE manual_id = ?", manualID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

func (s *SQLite) LookupImages(ctx context.Context, manualID int64, firstPage, lastPage int, scope string) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.manual_id, i.page, i.x, i.y, i.w, i.h
		FROM images i
		JOIN manuals m ON m.id = i.manual_id
		WHERE i.manual_id = ? AND i.page >= ? AND i.page <= ?
		  AND (? = '' OR m.owner_id = ? OR m.owner_id = '')
		ORDER BY i.page, i.id
	`, manualID, firstPage, lastPage, scope, scope)
	if err != nil {
		return nil, fmt.Errorf("looking up images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ManualID, &img.Page, &img.X, &img.Y, &img.W, &img.H); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// --- helpers ---

func scanSections(rows *sql.Rows) ([]Section, error) {
	var sections []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.ManualID, &sec.Name, &sec.FirstPage, &sec.Length, &sec.Level); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullStr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
