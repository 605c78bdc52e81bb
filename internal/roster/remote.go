package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victornm/raboard/internal/domain"
)

const defaultRemoteTimeout = 10 * time.Second

type RemoteTableConfig struct {
	// URL of a CSV document, e.g. a spreadsheet published as CSV.
	URL string
	// Column is the header of the column holding the handles. When empty the document has no
	// header row and the handles are read from the first column.
	Column     string
	HTTPClient *http.Client
}

// RemoteTable reads the roster from a CSV document served over HTTP, on every Resolve.
type RemoteTable struct {
	url    string
	column string
	http   *http.Client
}

func NewRemoteTable(c RemoteTableConfig) *RemoteTable {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultRemoteTimeout}
	}

	return &RemoteTable{
		url:    c.URL,
		column: strings.TrimSpace(c.Column),
		http:   hc,
	}
}

func (r *RemoteTable) Resolve(ctx context.Context) ([]domain.Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get roster table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get roster table: unexpected status %d", resp.StatusCode)
	}

	return r.parse(resp.Body)
}

func (r *RemoteTable) parse(body io.Reader) ([]domain.Handle, error) {
	cr := csv.NewReader(body)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	col := 0
	if r.column != "" {
		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("roster table: missing header row")
		}
		if err != nil {
			return nil, fmt.Errorf("roster table: read header: %w", err)
		}

		col = -1
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), r.column) {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("roster table: column %q not found", r.column)
		}
	}

	var raw []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster table: read row: %w", err)
		}

		if col < len(rec) {
			raw = append(raw, rec[col])
		}
	}

	return normalize(raw), nil
}
