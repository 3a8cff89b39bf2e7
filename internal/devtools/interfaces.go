package devtools

import (
	"context"

	"storyreel/internal/stories"
)

type Demo interface {
	Names() []string
	Resolve(name string) Scenario
	Build(name string, reg stories.Registry) (stories.Document, error)
	SetState(ctx context.Context, state string, rendered bool) error
}

var _ Demo = (*Manager)(nil)
