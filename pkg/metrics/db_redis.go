package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_db_pool_open",
		Help: "Current open DB connections",
	})
	DbPoolIdle         = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_idle", Help: "Idle DB connections"})
	DbPoolInuse        = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_inuse", Help: "In-use DB connections"})
	DbPoolWaitCount    = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_wait_count", Help: "Total waits for a DB connection"})
	DbPoolWaitDuration = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_wait_seconds", Help: "Total time waited for a DB connection"})

	RedisPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_open", Help: "Open redis connections"})
	RedisPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle", Help: "Idle redis connections"})

	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "app_store_query_duration_seconds",
		Help:    "Ticket store operation latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms ~ 16s
	}, []string{"op", "status"})

	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_snapshot_cache_ops_total",
		Help: "Snapshot cache lookups and writes",
	}, []string{"op", "result"}) // op: get/set/del result: hit/miss/ok/error

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_circuitbreaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
)

// ObserveStore 记录一次存储调用
func ObserveStore(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// StartPoolCollector 每 every 采一次连接池状态，ctx 结束退出；rdb 可以为 nil
func StartPoolCollector(ctx context.Context, db *sql.DB, rdb *redis.Client, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				CollectPools(db, rdb)
			}
		}
	}()
}

func CollectPools(db *sql.DB, rdb *redis.Client) {
	if db != nil {
		st := db.Stats()
		DbPoolOpen.Set(float64(st.OpenConnections))
		DbPoolIdle.Set(float64(st.Idle))
		DbPoolInuse.Set(float64(st.InUse))
		DbPoolWaitCount.Set(float64(st.WaitCount))
		DbPoolWaitDuration.Set(st.WaitDuration.Seconds())
	}
	if rdb != nil {
		st := rdb.PoolStats()
		RedisPoolOpen.Set(float64(st.TotalConns))
		RedisPoolIdle.Set(float64(st.IdleConns))
	}
}
