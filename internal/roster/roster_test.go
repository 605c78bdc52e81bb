package roster_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/roster"
)

func TestStatic_Resolve(t *testing.T) {
	s := roster.NewStatic(" A", "B", "", "A", "b", "C ")

	got, err := s.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Handle{"A", "B", "b", "C"}, got, "trimmed, deduplicated, case-sensitive, order kept")

	got[0] = "mutated"
	again, _ := s.Resolve(context.Background())
	require.Equal(t, domain.Handle("A"), again[0], "callers should not share the roster slice")
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg     roster.Config
		wantErr bool
		assert  func(t *testing.T, s roster.Source)
	}{
		"default is the static default roster": {
			cfg: roster.Config{},
			assert: func(t *testing.T, s roster.Source) {
				got, err := s.Resolve(context.Background())
				require.NoError(t, err)
				require.Len(t, got, len(roster.DefaultHandles))
				assert.Equal(t, domain.Handle("Mbutters"), got[0])
			},
		},
		"static with handles": {
			cfg: roster.Config{Source: roster.SourceStatic, Handles: []string{"x", "y"}},
			assert: func(t *testing.T, s roster.Source) {
				got, err := s.Resolve(context.Background())
				require.NoError(t, err)
				assert.Equal(t, []domain.Handle{"x", "y"}, got)
			},
		},
		"remote without url": {
			cfg:     roster.Config{Source: roster.SourceRemote},
			wantErr: true,
		},
		"remote": {
			cfg: roster.Config{Source: roster.SourceRemote, URL: "http://example.invalid/roster.csv"},
			assert: func(t *testing.T, s roster.Source) {
				assert.IsType(t, &roster.RemoteTable{}, s)
			},
		},
		"postgres without database": {
			cfg:     roster.Config{Source: roster.SourcePostgres},
			wantErr: true,
		},
		"unknown": {
			cfg:     roster.Config{Source: "ldap"},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, err := roster.New(tt.cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.assert(t, s)
		})
	}
}

func TestRemoteTable_Resolve(t *testing.T) {
	tests := map[string]struct {
		status  int
		body    string
		column  string
		want    []domain.Handle
		wantErr bool
	}{
		"first column without header": {
			status: http.StatusOK,
			body:   "Mbutters,1\nlowaims,2\n\nMbutters,3\n",
			want:   []domain.Handle{"Mbutters", "lowaims"},
		},
		"named column": {
			status: http.StatusOK,
			body:   "Name,RA Username\nBob,Audex\nAlice, ytwok\nEve,\n",
			column: "ra username",
			want:   []domain.Handle{"Audex", "ytwok"},
		},
		"missing column": {
			status:  http.StatusOK,
			body:    "Name\nBob\n",
			column:  "RA Username",
			wantErr: true,
		},
		"empty document with header expected": {
			status:  http.StatusOK,
			body:    "",
			column:  "RA Username",
			wantErr: true,
		},
		"empty document": {
			status: http.StatusOK,
			body:   "",
			want:   []domain.Handle{},
		},
		"server error": {
			status:  http.StatusInternalServerError,
			body:    "oops",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			s := roster.NewRemoteTable(roster.RemoteTableConfig{URL: srv.URL, Column: tt.column})

			got, err := s.Resolve(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPostgres_Resolve(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{values: []string{"A", "B", "A", " C "}}}

	got, err := roster.NewPostgres(q, "public.roster").Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Handle{"A", "B", "C"}, got)
	require.Equal(t, `SELECT handle FROM "public"."roster" WHERE enabled ORDER BY position, handle;`, q.sql)
	require.True(t, q.rows.closed)
}

func TestPostgres_QueryError(t *testing.T) {
	boom := stderrors.New("connection refused")

	_, err := roster.NewPostgres(&fakeQuerier{err: boom}, "").Resolve(context.Background())
	require.ErrorIs(t, err, boom)
}

type fakeQuerier struct {
	sql  string
	rows *fakeRows
	err  error
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.sql = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

type fakeRows struct {
	values []string
	i      int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.values) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.values[r.i-1]
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return []any{r.values[r.i-1]}, nil
}
