package waitlist

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when the email is already on the waitlist.
var ErrDuplicate = errors.New("waitlist: duplicate email")

// ErrUnavailable is returned when the backend cannot be reached or is not
// set up to take signups.
var ErrUnavailable = errors.New("waitlist: store unavailable")

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// SQLSTATE classes and codes that mean the database is down or misconfigured:
// connection exception, invalid authorization, invalid catalog name, operator
// intervention and undefined table.
var unavailableClasses = []string{"08", "28", "3D", "57P"}

const undefinedTable = "42P01"

// Entry is one waitlist signup.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists signups. Add returns ErrDuplicate for a known email.
type Store interface {
	Add(ctx context.Context, name, email string) (Entry, error)
	Backend() string
}

// MemoryStore keeps entries in process; used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	emails  map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{emails: make(map[string]struct{})}
}

func (s *MemoryStore) Add(ctx context.Context, name, email string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return Entry{}, ErrDuplicate
	}
	e := Entry{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	s.emails[email] = struct{}{}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *MemoryStore) Backend() string { return "memory" }

// Entries returns a copy of all signups in insertion order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// PostgresStore writes signups to a Postgres table with a unique email column.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// OpenPostgres opens (but does not ping) a lib/pq connection pool.
func OpenPostgres(dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db, table), nil
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = "Waitlist"
	}
	return &PostgresStore{db: db, table: table}
}

// Migrate creates the table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	name text NOT NULL,
	email text NOT NULL UNIQUE,
	created_at timestamptz NOT NULL DEFAULT now()
)`, pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, name, email string) (Entry, error) {
	q := fmt.Sprintf(`INSERT INTO %s (id, name, email) VALUES ($1, $2, $3) RETURNING created_at`,
		pq.QuoteIdentifier(s.table))

	e := Entry{ID: uuid.NewString(), Name: name, Email: email}
	err := s.db.QueryRowContext(ctx, q, e.ID, name, email).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return Entry{}, ErrDuplicate
	}
	if isUnavailable(err) {
		return Entry{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("insert into %s: %w", s.table, err)
	}
	return e, nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if code == undefinedTable {
			return true
		}
		for _, class := range unavailableClasses {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
	}
	return false
}
