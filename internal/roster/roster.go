// Package roster resolves the ordered list of users ranked on a leaderboard.
package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/raboard/internal/domain"
)

const (
	SourceStatic   = "static"
	SourceRemote   = "remote"
	SourcePostgres = "postgres"
)

// DefaultHandles is the roster used when none is configured.
var DefaultHandles = []string{
	"Mbutters",
	"lowaims",
	"ShminalShmantasy",
	"Marquessam",
	"Xsiverx",
	"zckttck",
	"Audex",
	"ParanoidPunky",
	"Magus508",
	"ytwok",
	"joebobdead",
	"tragicnostalgic",
	"MuttonchopMac",
}

// Source resolves a roster. Handles are unique and their order defines the batch assignment.
type Source interface {
	Resolve(ctx context.Context) ([]domain.Handle, error)
}

type Config struct {
	// Source is one of "static", "remote" or "postgres".
	Source  string
	Handles []string
	URL     string
	Column  string
	Table   string
}

// New returns the source selected by c.Source. db is only used by the postgres source.
func New(c Config, db *pgxpool.Pool) (Source, error) {
	switch c.Source {
	case "", SourceStatic:
		handles := c.Handles
		if len(handles) == 0 {
			handles = DefaultHandles
		}
		return NewStatic(handles...), nil

	case SourceRemote:
		if c.URL == "" {
			return nil, fmt.Errorf("roster: remote source requires a url")
		}
		return NewRemoteTable(RemoteTableConfig{URL: c.URL, Column: c.Column}), nil

	case SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("roster: postgres source requires a database")
		}
		return NewPostgres(db, c.Table), nil

	default:
		return nil, fmt.Errorf("roster: unknown source %q", c.Source)
	}
}

// normalize trims handles, drops empty ones and keeps the first occurrence of duplicates.
func normalize(raw []string) []domain.Handle {
	seen := make(map[string]struct{}, len(raw))
	handles := make([]domain.Handle, 0, len(raw))

	for _, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		handles = append(handles, domain.Handle(h))
	}

	return handles
}
