package roster

import (
	"context"
	"slices"

	"github.com/victornm/raboard/internal/domain"
)

// Static is a roster configured up front.
type Static struct {
	handles []domain.Handle
}

func NewStatic(handles ...string) *Static {
	return &Static{handles: normalize(handles)}
}

func (s *Static) Resolve(context.Context) ([]domain.Handle, error) {
	return slices.Clone(s.handles), nil
}
