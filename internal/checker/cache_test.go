package checker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerdictCacheWithoutRedisComputesEveryTime(t *testing.T) {
	cache := NewVerdictCache(nil, time.Minute, nil)
	calls := 0
	compute := func(context.Context) (*CheckResult, error) {
		calls++
		return &CheckResult{Result: 42}, nil
	}

	for i := 0; i < 2; i++ {
		result, status, err := cache.GetOrCompute(context.Background(), "текст статьи", compute)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if result.Result != 42 {
			t.Errorf("result = %d, want 42", result.Result)
		}
		if status != CacheMiss {
			t.Errorf("status = %v, want miss without a backing store", status)
		}
	}
	if calls != 2 {
		t.Errorf("compute ran %d times, want 2", calls)
	}
}

func TestVerdictCacheComputeSurvivesCallerCancellation(t *testing.T) {
	cache := NewVerdictCache(nil, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())

	result, _, err := cache.GetOrCompute(ctx, "текст статьи", func(computeCtx context.Context) (*CheckResult, error) {
		cancel()
		if computeCtx.Err() != nil {
			t.Error("compute context died with the caller that started the flight")
		}
		return &CheckResult{Result: 7}, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if result.Result != 7 {
		t.Errorf("result = %d, want 7", result.Result)
	}
}

func TestVerdictCachePropagatesComputeError(t *testing.T) {
	cache := NewVerdictCache(nil, time.Minute, nil)
	wantErr := errors.New("pipeline failed")
	_, _, err := cache.GetOrCompute(context.Background(), "текст", func(context.Context) (*CheckResult, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("GetOrCompute error = %v, want %v", err, wantErr)
	}
}
