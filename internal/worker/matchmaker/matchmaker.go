// Package matchmaker はマッチングキューの定期スキャン処理を提供する。
// ティッカーで起動し、待機中エントリを2件ずつペアリングして対戦を生成する。
package matchmaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/model"
)

// Matcher はペアリング1回分の実行インターフェース。
type Matcher interface {
	// TryMatch は待機中エントリを1組ペアリングして対戦を生成する。
	// 成立しなかった場合はnilを返す。
	TryMatch(ctx context.Context) (*model.GameSession, error)
}

// maxMatchesPerScan は1スキャンで成立させる対戦数の上限。
// 異常なキュー状態でのスキャンの無限ループを防ぐ。
const maxMatchesPerScan = 100

// Scheduler はマッチングスキャンのスケジューリングを行う。
type Scheduler struct {
	matcher   Matcher
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// collectorはnilでもよい（メトリクスを記録しない）。
func NewScheduler(matcher Matcher, logger *slog.Logger, collector metrics.MetricsCollector) *Scheduler {
	return &Scheduler{
		matcher:   matcher,
		logger:    logger,
		collector: collector,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("マッチングスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("マッチングスキャンの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("マッチングスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("マッチングスキャンの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は待機中エントリを成立しなくなるまでペアリングする。
// 途中で1組の成立に失敗しても処理は中断し、残りは次回のスキャンに任せる。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	matched := 0

	for matched < maxMatchesPerScan {
		game, err := s.matcher.TryMatch(ctx)
		if err != nil {
			return err
		}
		if game == nil {
			break
		}

		matched++
		if s.collector != nil {
			s.collector.RecordMatchCreated()
		}
		s.logger.Info("対戦が成立しました",
			slog.String("game_id", game.ID),
			slog.String("player_a", game.Sides[model.SlotA].UserID),
			slog.String("player_b", game.Sides[model.SlotB].UserID),
		)
	}

	duration := time.Since(start)
	if s.collector != nil {
		s.collector.RecordMatchScanDuration(duration)
	}
	if matched > 0 {
		s.logger.Info("マッチングスキャンが完了しました",
			slog.Int("matched", matched),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	}

	return nil
}
