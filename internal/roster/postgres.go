package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/victornm/raboard/internal/domain"
)

const defaultTable = "roster"

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads the enabled handles of a roster table, ordered by position:
//
//	CREATE TABLE roster (
//		handle   TEXT PRIMARY KEY,
//		position INT NOT NULL DEFAULT 0,
//		enabled  BOOLEAN NOT NULL DEFAULT TRUE
//	);
type Postgres struct {
	db    Querier
	table string
}

func NewPostgres(db Querier, table string) *Postgres {
	if table == "" {
		table = defaultTable
	}

	return &Postgres{
		db:    db,
		table: table,
	}
}

func (p *Postgres) Resolve(ctx context.Context) ([]domain.Handle, error) {
	stmt := fmt.Sprintf(`SELECT handle FROM %s WHERE enabled ORDER BY position, handle;`,
		pgx.Identifier(strings.Split(p.table, ".")).Sanitize())

	rows, err := p.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect roster: %w", err)
	}

	return normalize(raw), nil
}
