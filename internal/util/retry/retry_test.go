package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func TestWithExponentialBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	ctx := context.Background()
	err := WithExponentialBackoff(ctx, operation, WithInitialDelay(10*time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_MaxRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("persistent error")
	}

	ctx := context.Background()
	maxRetries := 3
	err := WithExponentialBackoff(ctx, operation,
		WithMaxRetries(maxRetries),
		WithInitialDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected error after max retries, got nil")
	}
	// MaxRetries is the number of retries after the first attempt
	// So total attempts = maxRetries + 1
	expectedAttempts := maxRetries + 1
	if attempts != expectedAttempts {
		t.Errorf("Expected %d attempts (1 + %d retries), got: %d", expectedAttempts, maxRetries, attempts)
	}
}

func TestWithExponentialBackoff_FatalNotRetried(t *testing.T) {
	t.Parallel()
	fatal := errors.New("bad input")
	attempts := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(fatal)
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, fatal) {
		t.Errorf("Expected error to wrap the fatal cause, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for fatal error, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_BackoffSchedule(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Now())
	attempts := 0

	done := make(chan error, 1)
	go func() {
		done <- WithExponentialBackoff(context.Background(), func() error {
			attempts++
			if attempts < 4 {
				return errors.New("temporary error")
			}
			return nil
		},
			WithClock(clk),
			WithInitialDelay(time.Second),
			WithMaxDelay(2*time.Second),
			WithMultiplier(10.0))
	}()

	// Three failed attempts mean three sleeps: 1s, then capped at 2s twice.
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 2 * time.Second} {
		if err := clk.WaitAdvance(d, time.Second, 1); err != nil {
			t.Fatalf("clock advance failed: %v", err)
		}
	}

	if err := <-done; err != nil {
		t.Errorf("Expected success after retries, got: %v", err)
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got: %d", attempts)
	}
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- WithExponentialBackoff(ctx, func() error {
			return errors.New("temporary error")
		}, WithClock(clk))
	}()

	// Wait until the first backoff sleep is registered, then cancel.
	if err := clk.WaitAdvance(0, time.Second, 1); err != nil {
		t.Fatalf("clock advance failed: %v", err)
	}
	cancel()

	err := <-done
	if err == nil {
		t.Fatal("Expected error after cancellation, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestWithExponentialBackoff_ExhaustionMessage(t *testing.T) {
	t.Parallel()
	err := WithExponentialBackoff(context.Background(), func() error {
		return errors.New("persistent error")
	},
		WithMaxRetries(1),
		WithInitialDelay(time.Millisecond))

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("Expected attempt count in message, got: %v", err)
	}
}

func TestFatal_Nil(t *testing.T) {
	t.Parallel()
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should be nil")
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	plain := errors.New("plain")

	if IsFatal(plain) {
		t.Error("plain error should not be fatal")
	}
	if !IsFatal(Fatal(plain)) {
		t.Error("wrapped error should be fatal")
	}
	if !IsFatal(errors.Join(errors.New("other"), Fatal(plain))) {
		t.Error("fatal error inside a join should be detected")
	}
}
