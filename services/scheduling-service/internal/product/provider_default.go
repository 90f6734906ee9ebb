//go:build !protogen

package product

import (
	"log/slog"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
)

// NewCatalogProvider returns the store-backed provider in builds without
// generated catalog stubs.
func NewCatalogProvider(_ *slog.Logger, repo *storage.ProductRepository, _ string) (Provider, error) {
	return NewStoreProvider(repo), nil
}
