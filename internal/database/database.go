package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"careplan/internal/config"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type OrderBy int

const (
	OrderByASC OrderBy = iota
	OrderByDESC
)

func (o OrderBy) SQL() string {
	if o == OrderByDESC {
		return "DESC"
	}
	return "ASC"
}

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUnitNotFound            = errors.New("unit not found")
	ErrBundleNotFound          = errors.New("bundle not found")
	ErrCareActivityNotFound    = errors.New("care activity not found")
	ErrOccupationNotFound      = errors.New("occupation not found")
	ErrPlanningSessionNotFound = errors.New("planning session not found")
	ErrDuplicate               = errors.New("duplicate key")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement of the application. It runs either on the
// connection pool or inside a transaction started by Database.WithTx.
type Queries struct {
	q querier
}

type Database struct {
	*Queries
	DB *sql.DB
}

func New(db *sql.DB) *Database {
	return &Database{Queries: &Queries{q: db}, DB: db}
}

func Open(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: failed to ping: %w", err)
	}

	slog.Info("Connected to database successfully", "host", cfg.Host, "name", cfg.Name)
	return New(db), nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *Database) Close() error {
	return db.DB.Close()
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *Database) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}

	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("database: failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	query  strings.Builder
	args   []any
	argNum int
}

func newWhereBuilder(base string) *whereBuilder {
	b := &whereBuilder{argNum: 1}
	b.query.WriteString(base)
	return b
}

// add appends a condition; every "?" in cond is replaced by the next placeholder.
func (b *whereBuilder) add(cond string, args ...any) {
	b.query.WriteString(" AND ")
	for _, arg := range args {
		idx := strings.IndexByte(cond, '?')
		b.query.WriteString(cond[:idx])
		b.query.WriteString(fmt.Sprintf("$%d", b.argNum))
		b.args = append(b.args, arg)
		b.argNum++
		cond = cond[idx+1:]
	}
	b.query.WriteString(cond)
}

func (b *whereBuilder) raw(s string) {
	b.query.WriteString(s)
}

func (b *whereBuilder) page(limit, offset int) {
	if limit > 0 {
		b.query.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", b.argNum, b.argNum+1))
		b.args = append(b.args, limit, offset)
		b.argNum += 2
	}
}

func (b *whereBuilder) String() string {
	return b.query.String()
}

// setBuilder accumulates the SET clause of an UPDATE.
type setBuilder struct {
	query  strings.Builder
	args   []any
	argNum int
}

func newSetBuilder(table string) *setBuilder {
	b := &setBuilder{argNum: 1}
	b.query.WriteString("UPDATE " + table + " SET ")
	return b
}

func (b *setBuilder) set(column string, value any) {
	b.query.WriteString(fmt.Sprintf("%s = $%d, ", column, b.argNum))
	b.args = append(b.args, value)
	b.argNum++
}

func (b *setBuilder) finish(id uuid.UUID) (string, []any) {
	b.query.WriteString(fmt.Sprintf("updated_at = $%d WHERE id = $%d", b.argNum, b.argNum+1))
	b.args = append(b.args, time.Now().UTC(), id)
	return b.query.String(), b.args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
