// Package warmup はカタログキャッシュのバックグラウンド更新を提供する。
// 一定間隔で全カテゴリのカタログを取り直し、リクエスト経路でのキャッシュミスを減らす。
package warmup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/vavastore/internal/model"
)

// CatalogRefresher はカテゴリのカタログを上流から取り直してキャッシュを更新する。
type CatalogRefresher interface {
	Refresh(ctx context.Context, category model.Category) error
}

// Scheduler はカタログ更新のスケジューリングを行う。
// カテゴリごとの取得は並列に実行し、1カテゴリの失敗は他に影響しない。
type Scheduler struct {
	refresher  CatalogRefresher
	logger     *slog.Logger
	categories []model.Category
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher CatalogRefresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher:  refresher,
		logger:     logger,
		categories: model.Categories(),
	}
}

// Start は起動直後に1回更新し、その後interval間隔で更新を繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("カタログ更新スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("カタログ更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全カテゴリを並列に1回更新し、失敗したカテゴリ数を返す。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	start := time.Now()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for _, category := range s.categories {
		wg.Add(1)
		go func(c model.Category) {
			defer wg.Done()

			if err := s.refresher.Refresh(ctx, c); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				s.logger.Error("カタログの更新に失敗しました",
					slog.String("category", string(c)),
					slog.String("error", err.Error()),
				)
			}
		}(category)
	}

	wg.Wait()

	s.logger.Info("カタログ更新サイクルが完了しました",
		slog.Int("category_count", len(s.categories)),
		slog.Int("failed_count", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return failed
}
