// Package market はアカウントマーケット（LZT Market）APIのクライアントを提供する。
// 出品詳細の取得と在庫画像のプロキシに使う。キャッシュとリトライは行わない。
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/vavastore/internal/contracts"
	"github.com/hitoshi/vavastore/internal/metrics"
	"github.com/hitoshi/vavastore/internal/model"
	"github.com/hitoshi/vavastore/internal/retry"
)

const (
	// DefaultBaseURL はLZT MarketのAPIベースURL。
	DefaultBaseURL = "https://prod-api.lzt.market"
	// SourceName はログとメトリクスで使う上流の識別名。
	SourceName = "lzt-market"
	// maxListingSize は出品レスポンスの最大サイズ（8MB）。
	maxListingSize = 8 * 1024 * 1024
	// defaultImageContentType は上流がContent-Typeを返さない場合の値。
	defaultImageContentType = "image/png"
)

// imageTypes はマーケットが提供する在庫画像の種別。
var imageTypes = []string{"skins", "pickaxes", "dances", "gliders", "weapons", "agents", "buddies"}

// IsValidImageType は画像種別が対応しているかを返す。
func IsValidImageType(imageType string) bool {
	for _, t := range imageTypes {
		if t == imageType {
			return true
		}
	}
	return false
}

// Image は上流から取得した画像。Bodyは呼び出し側が閉じる。
type Image struct {
	ContentType string
	Body        io.ReadCloser
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL string // 空の場合はDefaultBaseURL
	Token   string // Bearerトークン。空の場合は全リクエストが設定エラーになる
}

// Client はマーケットAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
	token      string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
	}
}

// GetListing はアカウント情報（所有コンテンツの一覧を含む）を {base}/{id} から取得する。
// 上流が2xx以外を返した場合はそのステータスを保持したLISTING_NOT_FOUNDを返す。
func (c *Client) GetListing(ctx context.Context, id string) (*model.AccountListing, error) {
	return c.fetchListing(ctx, "/"+url.PathEscape(id), id)
}

// GetManagedListing は出品詳細を {base}/managing/{id} から取得する。
// エラーの扱いはGetListingと同じ。
func (c *Client) GetManagedListing(ctx context.Context, id string) (*model.AccountListing, error) {
	return c.fetchListing(ctx, "/managing/"+url.PathEscape(id), id)
}

func (c *Client) fetchListing(ctx context.Context, path, id string) (*model.AccountListing, error) {
	if c.token == "" {
		return nil, model.NewConfigurationError()
	}

	resp, err := c.get(ctx, path, "application/json")
	if err != nil {
		c.logger.Error("マーケットAPIの呼び出しに失敗しました",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if !retry.IsSuccessStatus(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		c.logger.Warn("マーケットAPIがエラーステータスを返しました",
			slog.String("listing_id", id),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewListingNotFoundError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingSize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) > maxListingSize {
		return nil, fmt.Errorf("出品レスポンスのサイズが上限を超えています: > %d bytes", maxListingSize)
	}

	if err := contracts.Validate(contracts.SchemaListing, body); err != nil {
		c.logger.Error("出品レスポンスの検証に失敗しました",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("出品レスポンスが不正です: %w", err)
	}

	var listing model.AccountListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("出品レスポンスのパースに失敗しました: %w", err)
	}
	listing.Raw = json.RawMessage(body)

	return &listing, nil
}

// FetchImage は在庫画像を取得する。成功時のBodyは上流のストリームそのもの。
// 画像種別の検証はトークンの確認より先に行う。
func (c *Client) FetchImage(ctx context.Context, id, imageType string) (*Image, error) {
	if !IsValidImageType(imageType) {
		return nil, model.NewInvalidImageTypeError(imageType)
	}
	if c.token == "" {
		return nil, model.NewConfigurationError()
	}

	path := "/" + url.PathEscape(id) + "/image?" + url.Values{"type": {imageType}}.Encode()
	resp, err := c.get(ctx, path, "image/*")
	if err != nil {
		c.logger.Error("マーケット画像の取得に失敗しました",
			slog.String("listing_id", id),
			slog.String("image_type", imageType),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("画像の取得に失敗しました: %w", err)
	}

	if !retry.IsSuccessStatus(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		c.logger.Warn("マーケット画像APIがエラーステータスを返しました",
			slog.String("listing_id", id),
			slog.String("image_type", imageType),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewImageNotFoundError(resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultImageContentType
	}
	return &Image{ContentType: contentType, Body: resp.Body}, nil
}

// get は認証ヘッダー付きのGETを1回だけ実行し、結果をメトリクスに記録する。
func (c *Client) get(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "Vavastore/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeError)
		return nil, err
	}
	c.metrics.RecordUpstreamLatency(SourceName, time.Since(start))
	if retry.IsSuccessStatus(resp.StatusCode) {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeSuccess)
	} else {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeStatus)
	}
	return resp, nil
}
