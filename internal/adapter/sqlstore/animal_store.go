// Package sqlstore reads shelter animals from a relational database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"petmatch/internal/domain"
	"petmatch/internal/port"
)

const animalColumns = "id, shelter_id, age, color, gender, kind, region, special_mark, happen_place"

// Options configures table access.
type Options struct {
	// Table holding the animals; defaults to "animal".
	Table string
	// SoftDeleteColumn hides rows where it is NOT NULL; empty disables the filter.
	SoftDeleteColumn string
}

// AnimalStore implements port.AnimalStore over database/sql.
type AnimalStore struct {
	db         *sql.DB
	ownsDB     bool
	driver     string
	selectAll  string
	selectByID string
}

// Open opens a database handle and wraps it in an AnimalStore.
func Open(driver, dsn string, opts Options) (*AnimalStore, error) {
	if driver == "" {
		detected, ok := DetectDriver(dsn)
		if !ok {
			return nil, fmt.Errorf("cannot detect database driver from dsn")
		}
		driver = detected
	}
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	dsn, err = NormalizeDSN(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := New(db, driver, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New wraps an existing handle. The handle is not closed by Close.
func New(db *sql.DB, driver string, opts Options) (*AnimalStore, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	table := opts.Table
	if table == "" {
		table = "animal"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if opts.SoftDeleteColumn != "" && !validIdentifier(opts.SoftDeleteColumn) {
		return nil, fmt.Errorf("invalid soft-delete column %q", opts.SoftDeleteColumn)
	}

	var visible string
	if opts.SoftDeleteColumn != "" {
		visible = opts.SoftDeleteColumn + " IS NULL"
	}

	var all, byID strings.Builder
	fmt.Fprintf(&all, "SELECT %s FROM %s", animalColumns, table)
	if visible != "" {
		fmt.Fprintf(&all, " WHERE %s", visible)
	}
	all.WriteString(" ORDER BY id")

	fmt.Fprintf(&byID, "SELECT %s FROM %s WHERE id = %s", animalColumns, table, placeholder(driver, 1))
	if visible != "" {
		fmt.Fprintf(&byID, " AND %s", visible)
	}

	return &AnimalStore{
		db:         db,
		driver:     driver,
		selectAll:  all.String(),
		selectByID: byID.String(),
	}, nil
}

// FetchAll returns every visible animal ordered by id.
func (s *AnimalStore) FetchAll(ctx context.Context) ([]domain.Animal, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, s.selectAll)
	if err != nil {
		return nil, fmt.Errorf("failed to query animals: %w", err)
	}
	defer rows.Close()

	var animals []domain.Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		animals = append(animals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read animals: %w", err)
	}
	return animals, nil
}

// FetchByID returns one visible animal or domain.ErrAnimalNotFound.
func (s *AnimalStore) FetchByID(ctx context.Context, id int64) (domain.Animal, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.Animal{}, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	a, err := scanAnimal(conn.QueryRowContext(ctx, s.selectByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Animal{}, fmt.Errorf("animal %d: %w", id, domain.ErrAnimalNotFound)
	}
	if err != nil {
		return domain.Animal{}, fmt.Errorf("failed to query animal %d: %w", id, err)
	}
	return a, nil
}

func (s *AnimalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *AnimalStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row scanner) (domain.Animal, error) {
	var (
		a      domain.Animal
		fields [8]sql.NullString
	)
	err := row.Scan(&a.ID, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4], &fields[5], &fields[6], &fields[7])
	if err != nil {
		return domain.Animal{}, err
	}
	a.ShelterID = fields[0].String
	a.Age = fields[1].String
	a.Color = fields[2].String
	a.Gender = fields[3].String
	a.Kind = fields[4].String
	a.Region = fields[5].String
	a.SpecialMark = fields[6].String
	a.HappenPlace = fields[7].String
	return a, nil
}

var _ port.AnimalStore = (*AnimalStore)(nil)
