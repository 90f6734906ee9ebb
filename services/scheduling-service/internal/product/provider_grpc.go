//go:build protogen

package product

import (
	"context"
	"log/slog"
	"time"

	"github.com/jihoonkang/ptbook/libs/grpcx"
	catalogv1 "github.com/jihoonkang/ptbook/protos/gen/catalog/v1"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
)

type grpcProvider struct {
	client   catalogv1.CatalogServiceClient
	fallback Provider
}

// NewCatalogProvider prefers the catalog service when an address is
// configured, falling back to the local cache when it is unreachable.
func NewCatalogProvider(logger *slog.Logger, repo *storage.ProductRepository, addr string) (Provider, error) {
	fallback := NewStoreProvider(repo)
	if addr == "" {
		return fallback, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("catalog service unavailable, using local cache", "err", err)
		return fallback, nil
	}
	logger.Info("grpc catalog provider enabled", "addr", addr)
	return &grpcProvider{client: catalogv1.NewCatalogServiceClient(conn), fallback: fallback}, nil
}

func (p *grpcProvider) Lookup(ctx context.Context, productID string) (model.Product, error) {
	resp, err := p.client.GetProduct(ctx, &catalogv1.ProductRequest{ProductId: productID})
	if err != nil {
		return p.fallback.Lookup(ctx, productID)
	}
	return model.Product{
		ID:              resp.GetProductId(),
		Name:            resp.GetName(),
		SessionCount:    int(resp.GetSessionCount()),
		DurationMinutes: int(resp.GetDurationMinutes()),
	}, nil
}
