package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vavastore/internal/market"
	"github.com/hitoshi/vavastore/internal/middleware"
	"github.com/hitoshi/vavastore/internal/model"
)

// imageCacheControl は在庫画像レスポンスのキャッシュ指定（1日）。
const imageCacheControl = "public, max-age=86400"

// ImageSource は在庫画像の取得元。
type ImageSource interface {
	// FetchImage は出品の在庫画像を取得する。Bodyは呼び出し側が閉じる。
	FetchImage(ctx context.Context, id, imageType string) (*market.Image, error)
}

// ImageHandler は在庫画像プロキシのHTTPハンドラー。
type ImageHandler struct {
	images ImageSource
	logger *slog.Logger
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(images ImageSource, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		logger: logger,
	}
}

// GetInventoryImage は上流の在庫画像をそのまま中継する。
// 未対応の画像種別は上流を呼ばずに400を返す。
// GET /inventory-image/{id}/{type}
func (h *ImageHandler) GetInventoryImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imageType := chi.URLParam(r, "type")

	if !market.IsValidImageType(imageType) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageTypeError(imageType))
		return
	}

	img, err := h.images.FetchImage(r.Context(), id, imageType)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	defer img.Body.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, img.Body); err != nil {
		// ヘッダー送信後のためステータスは変更できない
		h.logger.Warn("画像の中継に失敗しました",
			slog.String("listing_id", id),
			slog.String("image_type", imageType),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
