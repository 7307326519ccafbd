package config

import (
	"time"

	"ticketboard.com/pkg/ratelimit"
)

const ServiceName = "ticket-service"

type Cfg struct {
	Name    string        `yaml:"name" mapstructure:"name"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Db      DBConfig      `yaml:"db" mapstructure:"db"`
	Redis   Redis         `yaml:"redis" mapstructure:"redis"`
	Stream  Stream        `yaml:"stream" mapstructure:"stream"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	OTel    OTel          `yaml:"otel" mapstructure:"otel"`
	Metrics Metrics       `yaml:"metrics" mapstructure:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	// ToFile 同时写 logs/<name>.log
	ToFile bool `yaml:"to_file" mapstructure:"to_file"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	// StaticDir 非空时在 / 下提供前端静态文件
	StaticDir string    `yaml:"static_dir" mapstructure:"static_dir"`
	RateLimit RateLimit `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimit 只作用于变更接口；RPS <= 0 关闭
type RateLimit struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

type DBConfig struct {
	Type                   string `yaml:"type" mapstructure:"type"` // mysql | sqlite
	SourceName             string `yaml:"source_name" mapstructure:"source_name"`
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql" mapstructure:"log_sql"`
}

type Redis struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr               string `yaml:"addr" mapstructure:"addr"`
	Database           int    `yaml:"db" mapstructure:"db"`
	Auth               string `yaml:"auth" mapstructure:"auth"`
	PoolSize           int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns       int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	SnapshotTTLSeconds int    `yaml:"snapshot_ttl_seconds" mapstructure:"snapshot_ttl_seconds"`
}

type Stream struct {
	BufferSize          int `yaml:"buffer_size" mapstructure:"buffer_size"`
	HeartbeatSeconds    int `yaml:"heartbeat_seconds" mapstructure:"heartbeat_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
}

type BreakerConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests             uint32  `yaml:"max_requests" mapstructure:"max_requests"`
	IntervalSeconds         int     `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	TimeoutSeconds          int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	TripConsecutiveFailures uint32  `yaml:"trip_consecutive_failures" mapstructure:"trip_consecutive_failures"`
	TripFailureRate         float64 `yaml:"trip_failure_rate" mapstructure:"trip_failure_rate"`
	TripMinRequests         uint32  `yaml:"trip_min_requests" mapstructure:"trip_min_requests"`
}

type OTel struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

type Metrics struct {
	// Addr 单独的 /metrics 端口；为空时只挂在主路由上
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Defaults 没有配置文件也能跑起来：sqlite 文件库，无 redis
func Defaults() map[string]any {
	return map[string]any{
		"name":                              ServiceName,
		"log.level":                         "info",
		"log.to_file":                       false,
		"http.addr":                         ":3000",
		"http.static_dir":                   "",
		"http.rate_limit.rps":               50,
		"http.rate_limit.burst":             100,
		"db.type":                           "sqlite",
		"db.source_name":                    "ticketboard.db",
		"db.max_open_conns":                 20,
		"db.max_idle_conns":                 10,
		"db.conn_max_lifetime_minutes":      30,
		"db.log_sql":                        false,
		"redis.enabled":                     false,
		"redis.addr":                        "127.0.0.1:6379",
		"redis.db":                          0,
		"redis.auth":                        "",
		"redis.pool_size":                   20,
		"redis.min_idle_conns":              2,
		"redis.snapshot_ttl_seconds":        30,
		"stream.buffer_size":                64,
		"stream.heartbeat_seconds":          25,
		"stream.write_timeout_seconds":      10,
		"breaker.enabled":                   true,
		"breaker.max_requests":              5,
		"breaker.interval_seconds":          10,
		"breaker.timeout_seconds":           3,
		"breaker.trip_consecutive_failures": 10,
		"breaker.trip_failure_rate":         0,
		"breaker.trip_min_requests":         20,
		"otel.enabled":                      false,
		"otel.addr":                         "localhost:4317",
		"metrics.addr":                      "",
	}
}

func (s Stream) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

func (s Stream) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

func (r Redis) SnapshotTTL() time.Duration {
	return time.Duration(r.SnapshotTTLSeconds) * time.Second
}

func (d DBConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeMinutes) * time.Minute
}

func (b BreakerConfig) Rule() ratelimit.Rule {
	return ratelimit.Rule{
		MaxRequests:             b.MaxRequests,
		Interval:                time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:                 time.Duration(b.TimeoutSeconds) * time.Second,
		TripConsecutiveFailures: b.TripConsecutiveFailures,
		TripFailureRate:         b.TripFailureRate,
		TripMinRequests:         b.TripMinRequests,
	}
}
