package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vavastore/internal/model"
)

// maxEnrichBodySize はエンリッチリクエストボディの上限（1MB）。
const maxEnrichBodySize = 1 << 20

// enrichFields はカテゴリごとのリクエストのIDフィールド名。
var enrichFields = map[model.Category]string{
	model.CategorySkins:   "skinIds",
	model.CategoryAgents:  "agentIds",
	model.CategoryBuddies: "buddyIds",
}

// EnrichHandler はエンリッチメントのHTTPハンドラー。
type EnrichHandler struct {
	enricher Enricher
	logger   *slog.Logger
}

// NewEnrichHandler はEnrichHandlerを生成する。
func NewEnrichHandler(enricher Enricher, logger *slog.Logger) *EnrichHandler {
	return &EnrichHandler{
		enricher: enricher,
		logger:   logger,
	}
}

// Enrich はカテゴリ固定のエンリッチハンドラーを返す。
//
//	POST /enrich/skins   {"skinIds": [...]}  → {"skins": [...]}
//	POST /enrich/agents  {"agentIds": [...]} → {"agents": [...]}
//	POST /enrich/buddies {"buddyIds": [...]} → {"buddies": [...]}
//
// IDフィールドが無い、またはnullの場合は空入力として扱う。
func (h *EnrichHandler) Enrich(category model.Category) http.HandlerFunc {
	field := enrichFields[category]

	return func(w http.ResponseWriter, r *http.Request) {
		owned, err := decodeOwnedIDs(w, r, field)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
			return
		}

		results, err := h.enricher.Enrich(r.Context(), category, owned)
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string][]model.ProjectedResult{
			string(category): results,
		})
	}
}

// decodeOwnedIDs はリクエストボディからIDリストを取り出す。
func decodeOwnedIDs(w http.ResponseWriter, r *http.Request, field string) ([]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnrichBodySize)

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("ボディが大きすぎます（上限 %d バイト）", maxErr.Limit)
		}
		return nil, errors.New("ボディがJSONオブジェクトではありません")
	}

	raw, ok := body[field]
	if !ok || string(raw) == "null" {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%s は文字列の配列である必要があります", field)
	}
	return ids, nil
}
