// Package enrich は所有コンテンツIDを公開カタログと突き合わせ、
// 表示用に射影・整列する。
package enrich

import (
	"context"
	"log/slog"

	"github.com/hitoshi/vavastore/internal/metrics"
	"github.com/hitoshi/vavastore/internal/model"
)

// CatalogSource はカテゴリの全カタログを返す。
type CatalogSource interface {
	FetchCatalog(ctx context.Context, category model.Category) ([]model.CatalogEntry, error)
}

// Service はエンリッチメント処理のサービス。
type Service struct {
	catalog CatalogSource
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(catalog CatalogSource, logger *slog.Logger, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		catalog: catalog,
		logger:  logger,
		metrics: collector,
	}
}

// Enrich は所有IDをカタログ情報で補完し、表示順に並べて返す。
// 所有IDが空の場合は上流を呼ばずに空スライスを返す。
// カタログ取得に失敗した場合はエラーを返し、空の結果で代替しない。
func (s *Service) Enrich(ctx context.Context, category model.Category, owned []string) ([]model.ProjectedResult, error) {
	if _, ok := model.ParseCategory(string(category)); !ok {
		return nil, model.NewInvalidCategoryError(string(category))
	}
	if len(owned) == 0 {
		return []model.ProjectedResult{}, nil
	}

	catalog, err := s.catalog.FetchCatalog(ctx, category)
	if err != nil {
		return nil, err
	}

	kept, dropped := FilterOwned(catalog, owned)
	results := Sort(category, Project(category, kept))

	if dropped > 0 {
		s.metrics.RecordDroppedIDs(string(category), dropped)
		s.logger.Info("カタログに存在しない所有IDを除外しました",
			slog.String("category", string(category)),
			slog.Int("dropped_count", dropped),
		)
	}
	s.logger.Debug("エンリッチメントが完了しました",
		slog.String("category", string(category)),
		slog.Int("requested_count", len(owned)),
		slog.Int("matched_count", len(kept)),
		slog.Int("result_count", len(results)),
	)

	return results, nil
}
