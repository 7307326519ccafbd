package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"ticketboard.com/internal/ticket/config"
	"ticketboard.com/internal/ticket/domain"
	thttp "ticketboard.com/internal/ticket/http"
	"ticketboard.com/internal/ticket/repo"
	"ticketboard.com/internal/ticket/repo/mysql"
	"ticketboard.com/internal/ticket/service"
	"ticketboard.com/internal/ticket/stream"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/metrics"
	"ticketboard.com/pkg/orm"
	"ticketboard.com/pkg/ratelimit"
	"ticketboard.com/pkg/trace"
	"ticketboard.com/pkg/xredis"
)

const shutdownTimeout = 10 * time.Second

// App 组装所有依赖；New 负责建连接，Run 负责起服务，Close 负责释放
type App struct {
	cfg config.Cfg

	db            *gorm.DB
	rdb           *redis.Client
	store         repo.TicketRepo
	hub           *stream.Hub
	board         *service.Board
	limiter       *ratelimit.Store
	traceShutdown func(context.Context) error

	httpSrv    *http.Server
	metricsSrv *http.Server
}

func InitLogger(cfg config.Cfg) {
	if cfg.Log.ToFile {
		logger.Init(cfg.Name, cfg.Log.Level)
		return
	}
	logger.Log = logger.New(cfg.Name, cfg.Log.Level, zapcore.AddSync(os.Stdout))
}

func New(ctx context.Context, cfg config.Cfg) (*App, error) {
	a := &App{cfg: cfg}
	if err := a.startStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.startRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.startTrace(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var cache service.SnapshotCache = service.NopCache()
	if a.rdb != nil {
		cache = service.NewRedisCache(a.rdb)
	}
	a.hub = stream.NewHub()
	a.board = service.NewBoard(
		service.NewGateway(a.store, domain.UUIDv7{}, time.Now),
		service.NewSnapshotProvider(a.store, cache, cfg.Redis.SnapshotTTL()),
		a.hub,
	)

	if rl := cfg.HTTP.RateLimit; rl.RPS > 0 {
		a.limiter = ratelimit.NewStore(rate.Limit(rl.RPS), rl.Burst, 10*time.Minute)
	}

	router := thttp.NewRouter(thttp.Deps{
		ServiceName: cfg.Name,
		Board:       a.board,
		Store:       a.store,
		Stream:      cfg.Stream,
		Limiter:     a.limiter,
		StaticDir:   cfg.HTTP.StaticDir,
		Metrics:     cfg.Metrics.Addr == "",
	})
	a.httpSrv = thttp.NewServer(cfg.HTTP.Addr, router)
	// Shutdown 会等所有连接结束，先让 stream 连接退出
	a.httpSrv.RegisterOnShutdown(a.hub.Close)

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	}
	return a, nil
}

func (a *App) startStore(ctx context.Context) error {
	dbCfg := a.cfg.Db
	db, err := orm.Open(ctx, orm.Config{
		Type:        dbCfg.Type,
		DSN:         dbCfg.SourceName,
		MaxIdle:     dbCfg.MaxIdleConns,
		MaxOpen:     dbCfg.MaxOpenConns,
		MaxLifetime: dbCfg.ConnMaxLifetime(),
		LogSQL:      dbCfg.LogSQL,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", dbCfg.Type, err)
	}
	a.db = db
	if err := mysql.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var store repo.TicketRepo = mysql.NewTicketsRepo(db)
	if a.cfg.Breaker.Enabled {
		var m *ratelimit.Manager
		store, m = repo.WithBreaker(store, a.cfg.Breaker.Rule())
		m.OnStateChange(func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn(context.Background(), "store breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		})
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", dbCfg.Type, err)
	}
	a.store = store
	logger.Info(ctx, "store connected", zap.String("type", dbCfg.Type))
	return nil
}

func (a *App) startRedis(ctx context.Context) error {
	rc := a.cfg.Redis
	if !rc.Enabled {
		return nil
	}
	rdb, err := xredis.NewRedis(ctx, xredis.Config{
		Addr:         rc.Addr,
		Password:     rc.Auth,
		DB:           rc.Database,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
	})
	if err != nil {
		// 缓存只是加速，连不上就降级为直接查库
		logger.Warn(ctx, "redis unavailable, snapshot cache disabled", zap.String("addr", rc.Addr), zap.Error(err))
		return nil
	}
	a.rdb = rdb
	logger.Info(ctx, "redis connected", zap.String("addr", rc.Addr))
	return nil
}

func (a *App) startTrace(ctx context.Context) error {
	if !a.cfg.OTel.Enabled {
		return nil
	}
	shutdown, err := trace.InitTrace(ctx, a.cfg.Name, a.cfg.OTel.Addr)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.traceShutdown = shutdown
	return nil
}

// Handler 测试用
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

func (a *App) Board() *service.Board { return a.board }

// Run 阻塞直到 ctx 结束或某个 server 出错，然后优雅关闭
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if sqlDB, err := a.db.DB(); err == nil {
		metrics.StartPoolCollector(gctx, sqlDB, a.rdb, 5*time.Second)
	}
	if a.limiter != nil {
		a.limiter.StartJanitor(gctx, time.Minute)
	}

	g.Go(func() error {
		logger.Info(gctx, "http listening", zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.metricsSrv != nil {
		g.Go(func() error {
			logger.Info(gctx, "metrics listening", zap.String("addr", a.metricsSrv.Addr))
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *App) shutdown() error {
	logger.Info(context.Background(), "shutting down", zap.Int("subscribers", a.hub.Len()))
	a.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.httpSrv.Shutdown(ctx)
	if a.metricsSrv != nil {
		err = errors.Join(err, a.metricsSrv.Shutdown(ctx))
	}
	return err
}

// Close 释放连接，Run 返回之后调用
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = orm.Close(a.db)
	}
	if a.traceShutdown != nil {
		// 最多给 5 秒时间 flush trace
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.traceShutdown(ctx); err != nil {
			logger.Error(ctx, "shutdown tracer error", zap.Error(err))
		}
	}
	logger.Sync()
}
