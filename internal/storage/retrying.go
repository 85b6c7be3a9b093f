package storage

import (
	"context"

	"github.com/appdraft/project-engine/internal/retry"
)

// RetryingAdapter wraps another adapter and retries operations that fail
// with a retryable storage error. Not-found and validation failures pass
// through on the first attempt.
type RetryingAdapter struct {
	inner Adapter
	cfg   retry.Config
}

// WithRetries decorates inner with retry.DefaultConfig.
func WithRetries(inner Adapter) *RetryingAdapter {
	return NewRetryingAdapter(inner, retry.DefaultConfig())
}

// NewRetryingAdapter decorates inner with the given retry configuration.
func NewRetryingAdapter(inner Adapter, cfg retry.Config) *RetryingAdapter {
	return &RetryingAdapter{inner: inner, cfg: cfg}
}

func (r *RetryingAdapter) Save(ctx context.Context, path string, data []byte) error {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) error {
		return r.inner.Save(ctx, path, data)
	})
}

func (r *RetryingAdapter) Load(ctx context.Context, path string) ([]byte, error) {
	return retry.DoValue(ctx, r.cfg, func(ctx context.Context) ([]byte, error) {
		return r.inner.Load(ctx, path)
	})
}

func (r *RetryingAdapter) Delete(ctx context.Context, path string) error {
	return retry.Do(ctx, r.cfg, func(ctx context.Context) error {
		return r.inner.Delete(ctx, path)
	})
}

func (r *RetryingAdapter) Exists(ctx context.Context, path string) (bool, error) {
	return retry.DoValue(ctx, r.cfg, func(ctx context.Context) (bool, error) {
		return r.inner.Exists(ctx, path)
	})
}

func (r *RetryingAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	return retry.DoValue(ctx, r.cfg, func(ctx context.Context) ([]string, error) {
		return r.inner.List(ctx, prefix)
	})
}

func (r *RetryingAdapter) Metadata(ctx context.Context, path string) (ObjectInfo, error) {
	return retry.DoValue(ctx, r.cfg, func(ctx context.Context) (ObjectInfo, error) {
		return r.inner.Metadata(ctx, path)
	})
}
