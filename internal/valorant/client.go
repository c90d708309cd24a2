// Package valorant は公開ゲームデータAPI（valorant-api.com）からカタログを取得する。
// 取得は上限付きリトライで行い、成功したレスポンスはTTLキャッシュに保持する。
package valorant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/vavastore/internal/contracts"
	"github.com/hitoshi/vavastore/internal/metrics"
	"github.com/hitoshi/vavastore/internal/model"
	"github.com/hitoshi/vavastore/internal/retry"
)

const (
	// DefaultBaseURL はvalorant-api.comのAPIベースURL。
	DefaultBaseURL = "https://valorant-api.com/v1"
	// SourceName はログとメトリクスで使う上流の識別名。
	SourceName = "valorant-api"
	// maxCatalogSize はカタログレスポンスの最大サイズ（64MB）。
	maxCatalogSize = 64 * 1024 * 1024
)

// catalogPaths はカテゴリごとのエンドポイントパス。
var catalogPaths = map[model.Category]string{
	model.CategorySkins:   "/weapons/skins",
	model.CategoryAgents:  "/agents",
	model.CategoryBuddies: "/buddies",
}

// StatusError は上流が2xx以外のステータスを返したことを表す。
type StatusError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("valorant-api がステータス %d を返しました", e.StatusCode)
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL  string        // 空の場合はDefaultBaseURL
	Policy   retry.Policy  // リトライ方針
	CacheTTL time.Duration // カタログキャッシュのTTL。0以下で無効
}

// Client はカタログ取得クライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
	policy     retry.Policy
	cache      *catalogCache
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
		policy:     cfg.Policy,
		cache:      newCatalogCache(cfg.CacheTTL),
	}
}

// FetchCatalog はカテゴリの全カタログを上流の並び順のまま返す。
// リトライが尽きた場合はUPSTREAM_UNAVAILABLEのAPIErrorを返し、空の成功結果は返さない。
// スキーマ違反やパース失敗はリトライせず内部エラーとして返す。
func (c *Client) FetchCatalog(ctx context.Context, category model.Category) ([]model.CatalogEntry, error) {
	if _, ok := catalogPaths[category]; !ok {
		return nil, model.NewInvalidCategoryError(string(category))
	}

	if entries, hit := c.cache.get(category); hit {
		c.metrics.RecordCatalogCache(string(category), true)
		return entries, nil
	}
	if c.cache.enabled() {
		c.metrics.RecordCatalogCache(string(category), false)
	}

	return c.load(ctx, category)
}

// Refresh はキャッシュを参照せずに上流から取得し、成功した場合はキャッシュを置き換える。
// 失敗した場合、既存のキャッシュはそのまま残る。
func (c *Client) Refresh(ctx context.Context, category model.Category) error {
	if _, ok := catalogPaths[category]; !ok {
		return model.NewInvalidCategoryError(string(category))
	}
	_, err := c.load(ctx, category)
	return err
}

// CacheEnabled はカタログキャッシュが有効かどうかを返す。
func (c *Client) CacheEnabled() bool {
	return c.cache.enabled()
}

// load はリトライ付きで上流から取得し、検証済みの結果をキャッシュに保存する。
func (c *Client) load(ctx context.Context, category model.Category) ([]model.CatalogEntry, error) {
	url := c.baseURL + catalogPaths[category]

	policy := c.policy
	policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("カタログの取得に失敗しました",
			slog.String("category", string(category)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.String("error", err.Error()),
		)
	}

	body, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			c.logger.Error("リトライ上限に達したためカタログを取得できませんでした",
				slog.String("category", string(category)),
				slog.String("error", err.Error()),
			)
			return nil, model.NewUpstreamUnavailableError(SourceName, err)
		}
		return nil, err
	}

	entries, err := decodeCatalog(category, body)
	if err != nil {
		c.logger.Error("カタログレスポンスの検証に失敗しました",
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.cache.set(category, entries)

	c.logger.Debug("カタログを取得しました",
		slog.String("category", string(category)),
		slog.Int("entry_count", len(entries)),
	)
	return entries, nil
}

// fetchOnce は1回分のHTTP GETを実行し、2xxの場合のみボディを返す。
// ボディの読み取りも試行のタイムアウトに含める。
func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", "Vavastore/1.0")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeError)
		return nil, err
	}
	defer resp.Body.Close()

	if !retry.IsSuccessStatus(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeStatus)
		c.metrics.RecordUpstreamLatency(SourceName, time.Since(start))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize+1))
	if err != nil {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeError)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if len(body) > maxCatalogSize {
		c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeError)
		return nil, retry.Permanent(fmt.Errorf("カタログのサイズが上限を超えています: > %d bytes", maxCatalogSize))
	}

	c.metrics.RecordUpstreamAttempt(SourceName, metrics.OutcomeSuccess)
	c.metrics.RecordUpstreamLatency(SourceName, time.Since(start))
	return body, nil
}

// catalogResponse は上流のレスポンスエンベロープ。
type catalogResponse struct {
	Data []rawCatalogEntry `json:"data"`
}

// rawCatalogEntry は3カテゴリ共通の上流エントリ。使うフィールドのみ定義する。
type rawCatalogEntry struct {
	UUID                string   `json:"uuid"`
	DisplayName         string   `json:"displayName"`
	DisplayIcon         *string  `json:"displayIcon"`
	ContentTierUUID     *string  `json:"contentTierUuid"`
	IsPlayableCharacter *bool    `json:"isPlayableCharacter"`
	Role                *rawRole `json:"role"`
}

type rawRole struct {
	DisplayName *string `json:"displayName"`
}

// decodeCatalog はスキーマ検証後にレスポンスをCatalogEntryへ変換する。
func decodeCatalog(category model.Category, body []byte) ([]model.CatalogEntry, error) {
	schema, ok := contracts.CatalogSchema(string(category))
	if !ok {
		return nil, fmt.Errorf("カテゴリ %s のスキーマがありません", category)
	}
	if err := contracts.Validate(schema, body); err != nil {
		return nil, fmt.Errorf("カタログレスポンスが不正です: %w", err)
	}

	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("カタログレスポンスのパースに失敗しました: %w", err)
	}

	entries := make([]model.CatalogEntry, 0, len(resp.Data))
	for _, raw := range resp.Data {
		entries = append(entries, toCatalogEntry(category, raw))
	}
	return entries, nil
}

// toCatalogEntry はカテゴリ固有の属性をExtraとPlayableに詰め替える。
func toCatalogEntry(category model.Category, raw rawCatalogEntry) model.CatalogEntry {
	entry := model.CatalogEntry{
		UUID:        raw.UUID,
		DisplayName: raw.DisplayName,
		DisplayIcon: raw.DisplayIcon,
		Playable:    true,
	}

	switch category {
	case model.CategorySkins:
		if raw.ContentTierUUID != nil {
			entry.Extra = *raw.ContentTierUUID
		}
	case model.CategoryAgents:
		if raw.Role != nil && raw.Role.DisplayName != nil {
			entry.Extra = *raw.Role.DisplayName
		}
		entry.Playable = raw.IsPlayableCharacter != nil && *raw.IsPlayableCharacter
	}

	return entry
}
