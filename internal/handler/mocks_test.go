package handler

import (
	"context"
	"log/slog"

	"github.com/hitoshi/vavastore/internal/market"
	"github.com/hitoshi/vavastore/internal/middleware"
	"github.com/hitoshi/vavastore/internal/model"
)

// --- テスト用モック ---

// mockListingSource はテスト用のListingSourceモック。
type mockListingSource struct {
	getListingFn        func(ctx context.Context, id string) (*model.AccountListing, error)
	getManagedListingFn func(ctx context.Context, id string) (*model.AccountListing, error)
	calls               int
	managedCalls        int
}

func (m *mockListingSource) GetListing(ctx context.Context, id string) (*model.AccountListing, error) {
	m.calls++
	if m.getListingFn != nil {
		return m.getListingFn(ctx, id)
	}
	return nil, nil
}

func (m *mockListingSource) GetManagedListing(ctx context.Context, id string) (*model.AccountListing, error) {
	m.managedCalls++
	if m.getManagedListingFn != nil {
		return m.getManagedListingFn(ctx, id)
	}
	return nil, nil
}

// mockImageSource はテスト用のImageSourceモック。
type mockImageSource struct {
	fetchImageFn func(ctx context.Context, id, imageType string) (*market.Image, error)
	calls        int
}

func (m *mockImageSource) FetchImage(ctx context.Context, id, imageType string) (*market.Image, error) {
	m.calls++
	if m.fetchImageFn != nil {
		return m.fetchImageFn(ctx, id, imageType)
	}
	return nil, nil
}

// mockEnricher はテスト用のEnricherモック。
type mockEnricher struct {
	enrichFn func(ctx context.Context, category model.Category, owned []string) ([]model.ProjectedResult, error)
	calls    int
}

func (m *mockEnricher) Enrich(ctx context.Context, category model.Category, owned []string) ([]model.ProjectedResult, error) {
	m.calls++
	if m.enrichFn != nil {
		return m.enrichFn(ctx, category, owned)
	}
	return []model.ProjectedResult{}, nil
}

// mockCatalogSource はenrich.CatalogSourceのモック。
type mockCatalogSource struct {
	fetchFn func(ctx context.Context, category model.Category) ([]model.CatalogEntry, error)
	calls   int
}

func (m *mockCatalogSource) FetchCatalog(ctx context.Context, category model.Category) ([]model.CatalogEntry, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, category)
	}
	return []model.CatalogEntry{}, nil
}

// testDeps はモックで埋めたRouterDepsを返す。レート制限は実質無効。
func testDeps(listings ListingSource, images ImageSource, enricher Enricher) *RouterDeps {
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralBurst = 1000
	rlCfg.EnrichBurst = 1000
	rlCfg.CleanupInterval = 0

	return &RouterDeps{
		Logger:             slog.New(slog.DiscardHandler),
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:        middleware.NewRateLimiter(rlCfg, slog.New(slog.DiscardHandler)),
		Listings:           listings,
		Images:             images,
		Enricher:           enricher,
	}
}

func strPtr(s string) *string { return &s }

