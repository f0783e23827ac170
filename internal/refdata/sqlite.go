package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hl7-synth-server/internal/domain"
)

// SQLiteStore serves reference data from a SQLite database laid out like the
// public datasets it is built from (Census names, ICD-10-CM, NDC, LOINC, NPPES).
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	mu     sync.Mutex
	counts map[string]int
}

// NewSQLiteStore opens the reference database, creating the file and schema
// when they don't exist
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath, counts: make(map[string]int)}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hl7_tables (
		table_id TEXT NOT NULL,
		table_name TEXT DEFAULT '',
		code TEXT NOT NULL,
		text TEXT DEFAULT '',
		sort_order INTEGER NOT NULL,
		UNIQUE(table_id, code)
	);

	CREATE TABLE IF NOT EXISTS names_first (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		gender TEXT DEFAULT '',
		frequency_rank INTEGER NOT NULL,
		UNIQUE(name, gender)
	);

	CREATE TABLE IF NOT EXISTS names_last (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		frequency_rank INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS diagnoses (
		icd10_code TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		chapter TEXT DEFAULT '',
		frequency_rank INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS medications (
		ndc_code TEXT PRIMARY KEY,
		proprietary_name TEXT NOT NULL,
		nonproprietary_name TEXT DEFAULT '',
		dosage_form TEXT DEFAULT '',
		strength TEXT DEFAULT '',
		units TEXT DEFAULT '',
		route TEXT DEFAULT '',
		frequency_rank INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lab_tests (
		loinc_code TEXT PRIMARY KEY,
		long_common_name TEXT NOT NULL,
		units TEXT DEFAULT '',
		normal_low REAL DEFAULT 0,
		normal_high REAL DEFAULT 0,
		frequency_rank INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS providers (
		npi TEXT PRIMARY KEY,
		last_name TEXT NOT NULL,
		first_name TEXT NOT NULL,
		credential TEXT DEFAULT '',
		specialty TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_hl7_tables_id ON hl7_tables(table_id, sort_order);
	CREATE INDEX IF NOT EXISTS idx_names_first_gender ON names_first(gender, frequency_rank);
	CREATE INDEX IF NOT EXISTS idx_names_last_rank ON names_last(frequency_rank);
	CREATE INDEX IF NOT EXISTS idx_diagnoses_rank ON diagnoses(frequency_rank);
	CREATE INDEX IF NOT EXISTS idx_medications_rank ON medications(frequency_rank);
	CREATE INDEX IF NOT EXISTS idx_lab_tests_rank ON lab_tests(frequency_rank);
	`

	_, err := db.Exec(schema)
	return err
}

// IsEmpty reports whether the database holds no standards tables
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hl7_tables").Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count tables: %w", err)
	}
	return n == 0, nil
}

// Seed loads a dataset in one transaction. Existing rows with the same keys
// are replaced.
func (s *SQLiteStore) Seed(ctx context.Context, ds *Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for id, t := range ds.Tables {
		for i, v := range t.Values {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO hl7_tables (table_id, table_name, code, text, sort_order) VALUES (?, ?, ?, ?, ?)`,
				id, t.Name, v.Code, v.Text, i,
			); err != nil {
				return fmt.Errorf("failed to seed table %s: %w", id, err)
			}
		}
	}

	for i, fn := range ds.FirstNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO names_first (name, gender, frequency_rank) VALUES (?, ?, ?)`,
			fn.Name, string(fn.Gender), i+1,
		); err != nil {
			return fmt.Errorf("failed to seed first names: %w", err)
		}
	}

	for i, name := range ds.LastNames {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO names_last (name, frequency_rank) VALUES (?, ?)`,
			name, i+1,
		); err != nil {
			return fmt.Errorf("failed to seed last names: %w", err)
		}
	}

	for i, d := range ds.Diagnoses {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO diagnoses (icd10_code, description, chapter, frequency_rank) VALUES (?, ?, ?, ?)`,
			d.Code, d.Description, d.Chapter, i+1,
		); err != nil {
			return fmt.Errorf("failed to seed diagnoses: %w", err)
		}
	}

	for i, m := range ds.Medications {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO medications (ndc_code, proprietary_name, nonproprietary_name, dosage_form, strength, units, route, frequency_rank)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Code, m.Name, m.GenericName, m.DosageForm, m.Strength, m.Units, m.Route, i+1,
		); err != nil {
			return fmt.Errorf("failed to seed medications: %w", err)
		}
	}

	for i, l := range ds.LabTests {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO lab_tests (loinc_code, long_common_name, units, normal_low, normal_high, frequency_rank) VALUES (?, ?, ?, ?, ?, ?)`,
			l.Code, l.Name, l.Units, l.NormalLow, l.NormalHigh, i+1,
		); err != nil {
			return fmt.Errorf("failed to seed lab tests: %w", err)
		}
	}

	for _, p := range ds.Providers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO providers (npi, last_name, first_name, credential, specialty) VALUES (?, ?, ?, ?, ?)`,
			p.NPI, p.FamilyName, p.GivenName, p.Credential, p.Specialty,
		); err != nil {
			return fmt.Errorf("failed to seed providers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	s.mu.Lock()
	s.counts = make(map[string]int)
	s.mu.Unlock()
	return nil
}

// GetTable implements domain.TableProvider
func (s *SQLiteStore) GetTable(ctx context.Context, tableID string) (*domain.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name, code, text FROM hl7_tables WHERE table_id = ? ORDER BY sort_order",
		tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", tableID, err)
	}
	defer rows.Close()

	t := &domain.Table{ID: tableID}
	for rows.Next() {
		var v domain.TableValue
		if err := rows.Scan(&t.Name, &v.Code, &v.Text); err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", tableID, err)
		}
		t.Values = append(t.Values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(t.Values) == 0 {
		return nil, fmt.Errorf("table %s: %w", tableID, domain.ErrNotFound)
	}
	return t, nil
}

// ListTableIDs lists the distinct standards tables stored
func (s *SQLiteStore) ListTableIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT table_id FROM hl7_tables ORDER BY table_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RandomLastName implements domain.DemographicSource
func (s *SQLiteStore) RandomLastName(ctx context.Context, rng *rand.Rand) (string, error) {
	var name string
	err := s.pick(ctx, rng, source{table: "names_last", ranked: true},
		"SELECT name FROM names_last ORDER BY frequency_rank LIMIT 1 OFFSET ?",
		func(row *sql.Row) error { return row.Scan(&name) })
	return name, err
}

// RandomFirstName implements domain.DemographicSource. Unisex names are
// eligible for either gender.
func (s *SQLiteStore) RandomFirstName(ctx context.Context, rng *rand.Rand, gender domain.Gender) (string, error) {
	var name string
	if gender != domain.GenderMale && gender != domain.GenderFemale {
		err := s.pick(ctx, rng, source{table: "names_first", ranked: true},
			"SELECT name FROM names_first ORDER BY frequency_rank LIMIT 1 OFFSET ?",
			func(row *sql.Row) error { return row.Scan(&name) })
		return name, err
	}
	src := source{
		table:  "names_first",
		where:  "WHERE gender IN (?, '')",
		args:   []any{string(gender)},
		ranked: true,
	}
	err := s.pick(ctx, rng, src,
		"SELECT name FROM names_first WHERE gender IN (?, '') ORDER BY frequency_rank LIMIT 1 OFFSET ?",
		func(row *sql.Row) error { return row.Scan(&name) })
	return name, err
}

// RandomDiagnosis implements domain.DiagnosisSource
func (s *SQLiteStore) RandomDiagnosis(ctx context.Context, rng *rand.Rand) (*domain.Diagnosis, error) {
	d := &domain.Diagnosis{}
	err := s.pick(ctx, rng, source{table: "diagnoses", ranked: true},
		"SELECT icd10_code, description, chapter FROM diagnoses ORDER BY frequency_rank LIMIT 1 OFFSET ?",
		func(row *sql.Row) error { return row.Scan(&d.Code, &d.Description, &d.Chapter) })
	if err != nil {
		return nil, err
	}
	return d, nil
}

// RandomMedication implements domain.MedicationSource
func (s *SQLiteStore) RandomMedication(ctx context.Context, rng *rand.Rand) (*domain.Medication, error) {
	m := &domain.Medication{}
	err := s.pick(ctx, rng, source{table: "medications", ranked: true},
		`SELECT ndc_code, proprietary_name, nonproprietary_name, dosage_form, strength, units, route
		FROM medications ORDER BY frequency_rank LIMIT 1 OFFSET ?`,
		func(row *sql.Row) error {
			return row.Scan(&m.Code, &m.Name, &m.GenericName, &m.DosageForm, &m.Strength, &m.Units, &m.Route)
		})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RandomLabTest implements domain.LabTestSource
func (s *SQLiteStore) RandomLabTest(ctx context.Context, rng *rand.Rand) (*domain.LabTest, error) {
	l := &domain.LabTest{}
	err := s.pick(ctx, rng, source{table: "lab_tests", ranked: true},
		"SELECT loinc_code, long_common_name, units, normal_low, normal_high FROM lab_tests ORDER BY frequency_rank LIMIT 1 OFFSET ?",
		func(row *sql.Row) error { return row.Scan(&l.Code, &l.Name, &l.Units, &l.NormalLow, &l.NormalHigh) })
	if err != nil {
		return nil, err
	}
	return l, nil
}

// RandomProvider implements domain.ProviderSource
func (s *SQLiteStore) RandomProvider(ctx context.Context, rng *rand.Rand) (*domain.Provider, error) {
	p := &domain.Provider{}
	err := s.pick(ctx, rng, source{table: "providers"},
		"SELECT npi, last_name, first_name, credential, specialty FROM providers ORDER BY npi LIMIT 1 OFFSET ?",
		func(row *sql.Row) error { return row.Scan(&p.NPI, &p.FamilyName, &p.GivenName, &p.Credential, &p.Specialty) })
	if err != nil {
		return nil, err
	}
	return p, nil
}

// source describes the rows a random pick draws from. Ranked sources are
// biased toward low frequency_rank values.
type source struct {
	table  string
	where  string
	args   []any
	ranked bool
}

func (src source) key() string {
	return fmt.Sprintf("%s %s %v", src.table, src.where, src.args)
}

// pick selects one row of src. The row count per source is cached until the
// next Seed.
func (s *SQLiteStore) pick(ctx context.Context, rng *rand.Rand, src source, query string, scan func(*sql.Row) error) error {
	n, err := s.count(ctx, src)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoReferenceData
	}

	offset := rng.IntN(n)
	if src.ranked {
		offset = RankedIndex(rng, n)
	}
	args := append(append([]any{}, src.args...), offset)
	if err := scan(s.db.QueryRowContext(ctx, query, args...)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNoReferenceData
		}
		return fmt.Errorf("failed to read %s: %w", src.table, err)
	}
	return nil
}

func (s *SQLiteStore) count(ctx context.Context, src source) (int, error) {
	key := src.key()
	s.mu.Lock()
	n, ok := s.counts[key]
	s.mu.Unlock()
	if ok {
		return n, nil
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+src.table+" "+src.where, src.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", src.table, err)
	}

	s.mu.Lock()
	s.counts[key] = n
	s.mu.Unlock()
	return n, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}
