package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vault core.
type Metrics struct {
	// --- Operation processing ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	OpSequence  prometheus.Gauge

	// --- Ledger ---
	AccrualUpdates    *prometheus.CounterVec
	InterestCollected *prometheus.CounterVec
	PriceUpdates      *prometheus.CounterVec

	// --- Auctions ---
	AuctionsStarted   *prometheus.CounterVec
	AuctionsFinished  *prometheus.CounterVec
	AuctionsCancelled *prometheus.CounterVec
	BidsPlaced        *prometheus.CounterVec
	BuyNowFills       *prometheus.CounterVec
	BidFinalizations  *prometheus.CounterVec

	// --- Liquidation ---
	VaultsLiquidated *prometheus.CounterVec

	// --- Ingestion ---
	EventsReceived  *prometheus.CounterVec
	EventsDuplicate *prometheus.CounterVec
	ParseFailures   *prometheus.CounterVec

	// --- Persistence ---
	OpsPersisted  prometheus.Counter
	PersistErrors prometheus.Counter
	PersistDur    prometheus.Histogram
}

// NewMetrics registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OpsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_ops_applied_total",
			Help: "Operations applied, by operation name",
		}, []string{"op"}),
		OpsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_ops_rejected_total",
			Help: "Operations rejected, by operation name and error class",
		}, []string{"op", "reason"}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaultcore_op_duration_seconds",
			Help:    "Operation execution time",
			Buckets: prometheus.ExponentialBuckets(0.000001, 10, 8),
		}, []string{"op"}),
		OpSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vaultcore_op_sequence",
			Help: "Last applied operation sequence number",
		}),

		AccrualUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_accrual_updates_total",
			Help: "Accumulator updates applied, by asset",
		}, []string{"asset"}),
		InterestCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_interest_collections_total",
			Help: "Interest collections, by asset",
		}, []string{"asset"}),
		PriceUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_price_updates_total",
			Help: "Adjusted price updates, by asset",
		}, []string{"asset"}),

		AuctionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_auctions_started_total",
			Help: "Auctions opened by the liquidator, by asset",
		}, []string{"asset"}),
		AuctionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_auctions_finished_total",
			Help: "Auctions that reached their end condition, by asset",
		}, []string{"asset"}),
		AuctionsCancelled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_auctions_cancelled_total",
			Help: "Auctions torn down administratively, by asset",
		}, []string{"asset"}),
		BidsPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_bids_placed_total",
			Help: "Bids accepted into the bid book, by asset",
		}, []string{"asset"}),
		BuyNowFills: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_buy_now_fills_total",
			Help: "Instant fills at the current Dutch price, by asset",
		}, []string{"asset"}),
		BidFinalizations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_bid_finalizations_total",
			Help: "Resting bids executed after price crossing, by asset",
		}, []string{"asset"}),

		VaultsLiquidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_vaults_liquidated_total",
			Help: "Vaults zeroed by the liquidator, by asset",
		}, []string{"asset"}),

		EventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_events_received_total",
			Help: "Inbound events received, by type",
		}, []string{"type"}),
		EventsDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_events_duplicate_total",
			Help: "Inbound events dropped as duplicates, by type",
		}, []string{"type"}),
		ParseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultcore_parse_failures_total",
			Help: "Inbound events rejected by the parser, by subject",
		}, []string{"subject"}),

		OpsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_ops_persisted_total",
			Help: "Operation records written to the op log",
		}),
		PersistErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "vaultcore_persist_errors_total",
			Help: "Op log write failures",
		}),
		PersistDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaultcore_persist_batch_duration_seconds",
			Help:    "Op log batch write time",
			Buckets: prometheus.ExponentialBuckets(0.0001, 10, 6),
		}),
	}
}
