package product

import (
	"context"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
)

// Provider resolves a PT product's entitlement: how many sessions it
// grants and how long each runs.
type Provider interface {
	Lookup(ctx context.Context, productID string) (model.Product, error)
}

type storeProvider struct {
	repo *storage.ProductRepository
}

// NewStoreProvider serves products from the local catalog cache.
func NewStoreProvider(repo *storage.ProductRepository) Provider {
	return &storeProvider{repo: repo}
}

func (p *storeProvider) Lookup(ctx context.Context, productID string) (model.Product, error) {
	prod, err := p.repo.Get(ctx, productID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Product{}, faults.NotFound("unknown product %s", productID)
		}
		return model.Product{}, err
	}
	return prod, nil
}
