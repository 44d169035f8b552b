package service

import (
	"classtutor_backend/pkg/logger"
	"classtutor_backend/pkg/monitoring"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy 有界重试参数。失败被假定为瞬态（网络/配额），
// 线性退避在这个规模下足够，不做抖动也不做熔断。
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy 与原始流水线一致：3 次尝试，第 n 次失败后等 n 秒
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return p
}

// InvokeWithRetry 用有界重试包装一次远程推理调用。op 必须自包含一次
// 完整的"调用+解析"；任何失败都触发重试，最后一次失败直接上抛，
// 错误信息带上下文标签与底层错误，绝不静默吞掉。
func InvokeWithRetry[T any](ctx context.Context, label string, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.normalize()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s canceled: %w", label, err)
		}

		result, err := op(ctx)
		if err == nil {
			monitoring.InferenceAttempts.WithLabelValues(label, "success").Inc()
			return result, nil
		}
		monitoring.InferenceAttempts.WithLabelValues(label, "failure").Inc()
		lastErr = err

		if attempt < policy.MaxAttempts {
			logger.L().Warn("inference call failed, retrying",
				zap.String("context", label),
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", policy.MaxAttempts),
				zap.Error(err),
			)
			// 线性退避：attempt × BaseDelay；最后一次失败后不再等待
			select {
			case <-time.After(time.Duration(attempt) * policy.BaseDelay):
			case <-ctx.Done():
				return zero, fmt.Errorf("%s canceled: %w", label, ctx.Err())
			}
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", label, policy.MaxAttempts, lastErr)
}
