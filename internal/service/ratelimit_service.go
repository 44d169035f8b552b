package service

import (
	"classtutor_backend/internal/config"
	"classtutor_backend/pkg/monitoring"
	"context"
	"sync"
	"time"
)

const (
	ScopeDay    = "day"
	ScopeMinute = "minute"

	dayWindow    = 24 * time.Hour
	minuteWindow = time.Minute
)

// RateLimitResult 超限时返回给前端的信息
type RateLimitResult struct {
	Scope        string `json:"scope"`
	RetryAfterMs int64  `json:"retryAfterMs"`
	Limit        int    `json:"limit"`
}

// RateLimitService 辅导消息的滑动窗口准入控制。
// 窗口不落库，按需从会话内学生消息的时间戳推导；本服务只读不写，
// 新消息由调用方在准入后才持久化。
type RateLimitService struct {
	store ChatStore

	mu     sync.RWMutex
	limits config.ChatLimitConfig

	now func() time.Time // 测试钩子
}

func NewRateLimitService(store ChatStore, limits config.ChatLimitConfig) *RateLimitService {
	return &RateLimitService{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
}

// UpdateLimits 配置热更新回调
func (s *RateLimitService) UpdateLimits(limits config.ChatLimitConfig) {
	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()
}

// Check 返回 nil 表示放行。两个作用域独立判定，先日限后分钟限；
// 分钟窗口只在日窗口时间戳的尾部子集上评估。
func (s *RateLimitService) Check(ctx context.Context, sessionID string) (*RateLimitResult, error) {
	s.mu.RLock()
	limits := s.limits
	s.mu.RUnlock()

	now := s.now()
	dayTimes, err := s.store.StudentMessageTimes(ctx, sessionID, now.Add(-dayWindow))
	if err != nil {
		return nil, err
	}

	if limits.PerDay > 0 && len(dayTimes) >= limits.PerDay {
		result := &RateLimitResult{
			Scope:        ScopeDay,
			RetryAfterMs: retryAfterMs(oldest(dayTimes), now, dayWindow),
			Limit:        limits.PerDay,
		}
		monitoring.ChatRateLimited.WithLabelValues(ScopeDay).Inc()
		return result, nil
	}

	var minuteTimes []time.Time
	minuteCutoff := now.Add(-minuteWindow)
	for _, t := range dayTimes {
		if t.After(minuteCutoff) {
			minuteTimes = append(minuteTimes, t)
		}
	}

	if limits.PerMinute > 0 && len(minuteTimes) >= limits.PerMinute {
		result := &RateLimitResult{
			Scope:        ScopeMinute,
			RetryAfterMs: retryAfterMs(oldest(minuteTimes), now, minuteWindow),
			Limit:        limits.PerMinute,
		}
		monitoring.ChatRateLimited.WithLabelValues(ScopeMinute).Inc()
		return result, nil
	}

	return nil, nil
}

// retryAfterMs 最老的窗口内消息滑出窗口还需要的毫秒数，夹到非负
func retryAfterMs(oldestAt, now time.Time, window time.Duration) int64 {
	remaining := window - now.Sub(oldestAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining.Milliseconds()
}

func oldest(times []time.Time) time.Time {
	min := times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min
}
