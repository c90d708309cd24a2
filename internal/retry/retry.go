// Package retry は固定間隔バックオフ付きの上限付きリトライを提供する。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// defaultMaxAttempts は合計試行回数の既定値。
	defaultMaxAttempts = 3
	// defaultDelay は失敗後の待機時間の既定値。
	defaultDelay = 1 * time.Second
	// defaultAttemptTimeout は1回の試行のタイムアウトの既定値。
	defaultAttemptTimeout = 10 * time.Second
)

// ErrExhausted はすべての試行が失敗したことを示す。
var ErrExhausted = errors.New("retry attempts exhausted")

// SleepFunc は試行間の待機を行う関数。テストで差し替える。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy はリトライ方針。
type Policy struct {
	MaxAttempts    int           // 合計試行回数（初回を含む）
	Delay          time.Duration // 失敗した試行の後、次の試行までの固定待機時間
	AttemptTimeout time.Duration // 1回の試行のタイムアウト。0以下なら無制限

	// Sleep は待機関数。nilの場合はタイマーで待機する。
	Sleep SleepFunc

	// OnRetry は失敗した試行ごとに呼ばれる。最後の試行でも呼ばれる。
	OnRetry func(attempt int, err error)
}

// DefaultPolicy は3回・1秒間隔・試行ごと10秒タイムアウトの方針を返す。
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    defaultMaxAttempts,
		Delay:          defaultDelay,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

// ExhaustedError は試行が尽きたときに返されるエラー。最後の失敗原因を保持する。
type ExhaustedError struct {
	Attempts int
	Last     error
}

// Error はerrorインターフェースを実装する。
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%d回試行しましたがすべて失敗しました: %v", e.Attempts, e.Last)
}

// Unwrap は最後の失敗原因を返す。
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is はErrExhaustedとの比較でtrueを返す。
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// permanentError はリトライしても解消しないエラーを表す。
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent はerrをリトライ不要としてマークする。
// Doはこのエラーを受け取ると即座に（ラップを外して）返す。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do はopを方針に従って実行する。
// 各試行はAttemptTimeoutで打ち切られ、タイムアウトも1回の失敗として数える。
// 待機は失敗した試行の間にのみ行い、最後の試行の後には待たない。
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := runAttempt(ctx, p.AttemptTimeout, attempt, op)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if attempt == maxAttempts {
			break
		}

		// 呼び出し元がキャンセルした場合はそれ以上試行しない
		if ctx.Err() != nil {
			return zero, &ExhaustedError{Attempts: attempt, Last: ctx.Err()}
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, &ExhaustedError{Attempts: attempt, Last: err}
		}
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// runAttempt は1回分の試行をタイムアウト付きコンテキストで実行する。
func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx, attempt)
}

// timerSleep はdだけ待機する。コンテキストが先に終了した場合はそのエラーを返す。
func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsSuccessStatus はHTTPステータスが2xxかどうかを判定する。
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
