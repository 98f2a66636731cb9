// Package janitor はマッチングキューの滞留エントリ掃除ジョブを提供する。
// 待機のまま30分を超えたエントリと、ペアリング後に対戦へ到達しないまま
// 10分を超えたエントリを定期バッチで削除する。
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/repository"
)

// DefaultWaitingTTL は待機エントリの既定の保持時間。
const DefaultWaitingTTL = 30 * time.Minute

// DefaultMatchedTTL はペアリング済みエントリの既定の保持時間。
const DefaultMatchedTTL = 10 * time.Minute

// Janitor はキューの滞留エントリ削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Janitor struct {
	queueRepo  repository.QueueRepository
	gameRepo   repository.GameRepository
	logger     *slog.Logger
	collector  metrics.MetricsCollector
	WaitingTTL time.Duration
	MatchedTTL time.Duration
}

// NewJanitor は新しいJanitorを生成する。
// 保持時間は既定で waiting 30分 / matched 10分。
func NewJanitor(
	queueRepo repository.QueueRepository,
	gameRepo repository.GameRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Janitor {
	return &Janitor{
		queueRepo:  queueRepo,
		gameRepo:   gameRepo,
		logger:     logger,
		collector:  collector,
		WaitingTTL: DefaultWaitingTTL,
		MatchedTTL: DefaultMatchedTTL,
	}
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("キュージャニターを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("waiting_ttl", j.WaitingTTL),
		slog.Duration("matched_ttl", j.MatchedTTL),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("キュー掃除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("キュージャニターを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("キュー掃除ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は滞留エントリを1回掃除する。
// waiting: 30分を超えたものを無条件に削除する。
// matched: 10分を超えたもののうち、対応するアクティブな対戦が
// 存在しないものだけを削除する（対戦中のプレイヤーのエントリは残す）。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Janitor) Run(ctx context.Context) error {
	start := time.Now()

	waitingDeleted, err := j.queueRepo.DeleteWaitingOlderThan(ctx, start.Add(-j.WaitingTTL))
	if err != nil {
		j.logger.Error("古い待機エントリの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	stale, err := j.queueRepo.ListMatchedOlderThan(ctx, start.Add(-j.MatchedTTL))
	if err != nil {
		j.logger.Error("古いmatchedエントリの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	var matchedDeleted int64
	for _, entry := range stale {
		games, err := j.gameRepo.ListActiveByUser(ctx, entry.UserID)
		if err != nil {
			j.logger.Error("アクティブ対戦の確認に失敗しました",
				slog.String("entry_id", entry.ID),
				slog.String("user_id", entry.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(games) > 0 {
			// 対戦に到達済み。エントリは対戦終了後のフローで回収される
			continue
		}

		if err := j.queueRepo.DeleteByID(ctx, entry.ID); err != nil {
			j.logger.Error("matchedエントリの削除に失敗しました",
				slog.String("entry_id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		matchedDeleted++
	}

	if j.collector != nil {
		j.collector.RecordSweptEntries("waiting", waitingDeleted)
		j.collector.RecordSweptEntries("matched", matchedDeleted)
	}

	duration := time.Since(start)
	j.logger.Info("キュー掃除ジョブが完了しました",
		slog.Int64("waiting_deleted", waitingDeleted),
		slog.Int64("matched_deleted", matchedDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
