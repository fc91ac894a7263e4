package problem

import (
	"context"
	"strings"
)

// NewSource prefers a Postgres problem bank, then a bank file, then the
// builtin list.
func NewSource(ctx context.Context, databaseURL, path string) (Source, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresSource(ctx, databaseURL)
	}
	if strings.TrimSpace(path) != "" {
		return NewFileSource(path)
	}
	return NewStaticSource(Builtin), nil
}
