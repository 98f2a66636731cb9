// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordEnqueue(mode string)
	RecordMatchCreated()
	RecordMatchScanDuration(duration time.Duration)
	RecordDraw()
	RecordSummon(action string)
	RecordDeckOut()
	RecordSweptEntries(status string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	enqueues     *prometheus.CounterVec
	matchCreated prometheus.Counter
	matchScan    prometheus.Histogram
	draws        prometheus.Counter
	summons      *prometheus.CounterVec
	deckOuts     prometheus.Counter
	sweptEntries *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		enqueues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duelman_enqueues_total",
			Help: "マッチングキュー参加の合計数（モード別）",
		}, []string{"mode"}),
		matchCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duelman_matches_created_total",
			Help: "成立した対戦の合計数",
		}),
		matchScan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "duelman_match_scan_duration_seconds",
			Help:    "マッチングスキャン1回の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duelman_draws_total",
			Help: "ドローの合計数",
		}),
		summons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duelman_summons_total",
			Help: "通常召喚・セットの合計数（種別別）",
		}, []string{"action"}),
		deckOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duelman_deck_outs_total",
			Help: "デッキ切れによる決着の合計数",
		}),
		sweptEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duelman_swept_queue_entries_total",
			Help: "ジャニターが削除したキューエントリの合計数（状態別）",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.enqueues,
		c.matchCreated,
		c.matchScan,
		c.draws,
		c.summons,
		c.deckOuts,
		c.sweptEntries,
	)

	return c
}

// RecordEnqueue はキュー参加を記録する。
func (c *Collector) RecordEnqueue(mode string) {
	c.enqueues.WithLabelValues(mode).Inc()
}

// RecordMatchCreated は対戦成立を記録する。
func (c *Collector) RecordMatchCreated() {
	c.matchCreated.Inc()
}

// RecordMatchScanDuration はマッチングスキャンの所要時間を記録する。
func (c *Collector) RecordMatchScanDuration(duration time.Duration) {
	c.matchScan.Observe(duration.Seconds())
}

// RecordDraw はドローを記録する。
func (c *Collector) RecordDraw() {
	c.draws.Inc()
}

// RecordSummon は通常召喚・セットを記録する。
func (c *Collector) RecordSummon(action string) {
	c.summons.WithLabelValues(action).Inc()
}

// RecordDeckOut はデッキ切れによる決着を記録する。
func (c *Collector) RecordDeckOut() {
	c.deckOuts.Inc()
}

// RecordSweptEntries はジャニターによる削除件数を記録する。
func (c *Collector) RecordSweptEntries(status string, count int64) {
	c.sweptEntries.WithLabelValues(status).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
