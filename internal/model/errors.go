// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, validation, upstream, system
	Action   string // ユーザー向け対処方法

	// UpstreamStatus は上流APIが返したHTTPステータス。
	// 0 以外の場合、ハンドラーはこの値をそのままレスポンスに使う。
	UpstreamStatus int

	// Err は原因となった内部エラー。レスポンスには含めずログにのみ出す。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeListingNotFound     = "LISTING_NOT_FOUND"
	ErrCodeImageNotFound       = "IMAGE_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInvalidImageType    = "INVALID_IMAGE_TYPE"
	ErrCodeInvalidCategory     = "INVALID_CATEGORY"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewConfigurationError はマーケットAPIの認証トークン未設定エラーを生成する。
// メッセージは固定で、リトライしても解消しない。
func NewConfigurationError() *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  "LZT_MARKET_TOKEN が設定されていません。",
		Category: "config",
		Action:   "サーバー管理者に連絡してください。",
	}
}

// NewUpstreamUnavailableError は上流APIへのリトライが尽きた場合のエラーを生成する。
func NewUpstreamUnavailableError(source string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("%s からデータを取得できませんでした。", source),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewListingNotFoundError は出品がマーケットに存在しない、または取得できない場合のエラーを生成する。
// 上流のステータスコードは診断用に保持する。
func NewListingNotFoundError(upstreamStatus int) *APIError {
	return &APIError{
		Code:           ErrCodeListingNotFound,
		Message:        "指定された出品がマーケットで見つかりません。",
		Category:       "upstream",
		Action:         "出品IDを確認してください。",
		UpstreamStatus: upstreamStatus,
	}
}

// NewImageNotFoundError は在庫画像が取得できない場合のエラーを生成する。
func NewImageNotFoundError(upstreamStatus int) *APIError {
	return &APIError{
		Code:           ErrCodeImageNotFound,
		Message:        "画像が見つかりません。",
		Category:       "upstream",
		Action:         "出品IDと画像種別を確認してください。",
		UpstreamStatus: upstreamStatus,
	}
}

// NewInvalidRequestError はリクエストボディが構造的に不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidImageTypeError は未対応の画像種別が指定された場合のエラーを生成する。
func NewInvalidImageTypeError(imageType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageType,
		Message:  fmt.Sprintf("無効な画像種別です: %s", imageType),
		Category: "validation",
		Action:   "画像種別には skins、pickaxes、dances、gliders、weapons、agents、buddies のいずれかを指定してください。",
	}
}

// NewInvalidCategoryError は未対応の在庫カテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには skins、agents、buddies のいずれかを指定してください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After の秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ出し、レスポンスには含めない。
func NewInternalError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}
