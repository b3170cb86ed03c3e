package tasks

import (
	"context"
	"strings"
)

// NewStore returns a postgres-backed store when databaseURL is set, otherwise nil
// (the Manager then keeps tasks in memory only).
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	store, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}
