package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vavastore/internal/middleware"
	"github.com/hitoshi/vavastore/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 5xxになるエラーは原因をログに残し、レスポンスには含めない。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
	}

	statusCode := mapAPIErrorToHTTPStatus(apiErr)
	if statusCode >= http.StatusInternalServerError {
		attrs := []any{
			slog.String("code", apiErr.Code),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		}
		if apiErr.Err != nil {
			attrs = append(attrs, slog.String("error", apiErr.Err.Error()))
		}
		if apiErr.UpstreamStatus != 0 {
			attrs = append(attrs, slog.Int("upstream_status", apiErr.UpstreamStatus))
		}
		logger.Error("request failed", attrs...)
	}

	writeAPIErrorResponse(w, statusCode, apiErr)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeListingNotFound, model.ErrCodeImageNotFound:
		return upstreamPassthroughStatus(apiErr.UpstreamStatus)
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidImageType, model.ErrCodeInvalidCategory:
		return http.StatusBadRequest
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeConfiguration, model.ErrCodeUpstreamUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// upstreamPassthroughStatus は上流のエラーステータスをそのまま返す。
// エラーを表さないステータス（1xx-3xx）や範囲外の値は502に置き換える。
func upstreamPassthroughStatus(status int) int {
	if status >= 400 && status <= 599 {
		return status
	}
	return http.StatusBadGateway
}
