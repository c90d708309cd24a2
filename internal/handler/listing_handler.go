package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vavastore/internal/model"
)

// ListingSource は出品詳細の取得元。
type ListingSource interface {
	// GetListing は出品IDに対応するアカウント情報を取得する。所有コンテンツの取得元。
	GetListing(ctx context.Context, id string) (*model.AccountListing, error)
	// GetManagedListing は出品IDに対応する出品詳細を取得する。
	GetManagedListing(ctx context.Context, id string) (*model.AccountListing, error)
}

// Enricher は所有IDを表示用の結果に変換する。
type Enricher interface {
	// Enrich は所有IDをカタログ情報で補完し、表示順に並べて返す。
	Enrich(ctx context.Context, category model.Category, owned []string) ([]model.ProjectedResult, error)
}

// ListingHandler は出品関連のHTTPハンドラー。
type ListingHandler struct {
	listings ListingSource
	enricher Enricher
	logger   *slog.Logger
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(listings ListingSource, enricher Enricher, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		enricher: enricher,
		logger:   logger,
	}
}

// GetListing は出品詳細を上流のJSONのまま返す。
// GET /listing/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	listing, err := h.listings.GetManagedListing(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(listing.Raw)
}

// GetListingInventory は出品の所有コンテンツをカテゴリ別にエンリッチして返す。
// GET /listing/{id}/{category}
func (h *ListingHandler) GetListingInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	category, ok := model.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(chi.URLParam(r, "category")))
		return
	}

	listing, err := h.listings.GetListing(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results, err := h.enricher.Enrich(r.Context(), category, listing.OwnedIDs(category))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.ProjectedResult{
		string(category): results,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
