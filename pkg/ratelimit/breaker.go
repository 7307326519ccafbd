package ratelimit

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Rule struct {
	// Half-Open 状态允许通过的探测请求数
	MaxRequests uint32
	// Closed 状态计数窗口
	Interval time.Duration
	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration

	// 触发熔断条件（两种之一即可）
	TripConsecutiveFailures uint32
	TripFailureRate         float64
	TripMinRequests         uint32
}

// Manager 每个资源名一个熔断器，懒创建。
// isSuccessful 决定哪些错误算依赖健康（例如 NotFound/参数错误不应触发熔断）。
type Manager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[any]

	rule         Rule
	isSuccessful func(err error) bool
	onState      func(name string, from, to gobreaker.State)
}

func NewManager(rule Rule, isSuccessful func(err error) bool) *Manager {
	if rule.MaxRequests == 0 {
		rule.MaxRequests = 5
	}
	if rule.Timeout <= 0 {
		rule.Timeout = 3 * time.Second
	}
	if rule.Interval <= 0 {
		rule.Interval = 10 * time.Second
	}
	if rule.TripConsecutiveFailures == 0 && rule.TripFailureRate == 0 {
		rule.TripConsecutiveFailures = 10
	}
	if rule.TripMinRequests == 0 {
		rule.TripMinRequests = 20
	}
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}
	return &Manager{
		m:            make(map[string]*gobreaker.CircuitBreaker[any], 8),
		rule:         rule,
		isSuccessful: isSuccessful,
	}
}

// OnStateChange 注册状态变化回调（打日志/指标），需在第一次 Get 之前调用
func (m *Manager) OnStateChange(fn func(name string, from, to gobreaker.State)) {
	m.onState = fn
}

func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb := m.m[name]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[name]; cb != nil {
		return cb
	}

	rule := m.rule
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: rule.MaxRequests,
		Interval:    rule.Interval,
		Timeout:     rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				return float64(c.TotalFailures)/float64(c.Requests) >= rule.TripFailureRate
			}
			return false
		},
		IsSuccessful: m.isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if m.onState != nil {
				m.onState(name, from, to)
			}
		},
	}
	cb = gobreaker.NewCircuitBreaker[any](st)
	m.m[name] = cb
	return cb
}

// IsOpen 熔断器拒绝的错误
func IsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
