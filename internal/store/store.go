// Package store persists the result table and loads OCR output.
package store

import (
	"context"

	"github.com/ppiankov/newsplaces/internal/model"
)

// Store rewrites the complete result table on every Save. Failures are
// *model.PersistenceError.
type Store interface {
	Save(ctx context.Context, rows []model.ResultRow) error
	Path() string
}

// MultiStore saves to several stores in order and stops at the first failure
type MultiStore []Store

// Save writes rows to every store
func (m MultiStore) Save(ctx context.Context, rows []model.ResultRow) error {
	for _, s := range m {
		if err := s.Save(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the primary store's path
func (m MultiStore) Path() string {
	if len(m) == 0 {
		return ""
	}
	return m[0].Path()
}
