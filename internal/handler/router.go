// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/vavastore/internal/metrics"
	"github.com/hitoshi/vavastore/internal/middleware"
	"github.com/hitoshi/vavastore/internal/model"
)

// RouterDeps はルーターの構築に必要な依存関係を保持する。
type RouterDeps struct {
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector

	// MetricsHandler は /metrics に割り当てるハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter

	Listings ListingSource
	Images   ImageSource
	Enricher Enricher
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → RealIP → RateLimit(General)
//
// カタログを参照するルートにはさらにRateLimit(Enrich)を重ねる。
// /health と /metrics はレート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "NOT_FOUND",
			Message:  "指定されたパスは存在しません。",
			Category: "validation",
			Action:   "URLを確認してください。",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
			Code:     "METHOD_NOT_ALLOWED",
			Message:  "このメソッドは許可されていません。",
			Category: "validation",
			Action:   "HTTPメソッドを確認してください。",
		})
	})

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	listingHandler := NewListingHandler(deps.Listings, deps.Enricher, deps.Logger)
	imageHandler := NewImageHandler(deps.Images, deps.Logger)
	enrichHandler := NewEnrichHandler(deps.Enricher, deps.Logger)

	r.Group(func(r chi.Router) {
		r.Use(chimw.RealIP)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/listing/{id}", listingHandler.GetListing)
		r.Get("/inventory-image/{id}/{type}", imageHandler.GetInventoryImage)

		// カタログを参照するルート
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.EnrichMiddleware())

			r.Get("/listing/{id}/{category}", listingHandler.GetListingInventory)

			r.Route("/enrich", func(r chi.Router) {
				r.Post("/skins", enrichHandler.Enrich(model.CategorySkins))
				r.Post("/agents", enrichHandler.Enrich(model.CategoryAgents))
				r.Post("/buddies", enrichHandler.Enrich(model.CategoryBuddies))
			})
		})
	})

	return r
}
