package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aonanj/citation-verifier/internal/model"
)

func verifiedJob(key string, executed *int32) Job {
	return JobFunc{ID: key, Fn: func(ctx context.Context) (model.Result, error) {
		if executed != nil {
			atomic.AddInt32(executed, 1)
		}
		return model.Verified(nil), nil
	}}
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		desc    string
		workers int
		want    int
	}{
		{desc: "explicit", workers: 5, want: 5},
		{desc: "zero", workers: 0, want: 1},
		{desc: "negative", workers: -1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			p := NewPool(context.Background(), tt.workers)
			if p.workers != tt.want {
				t.Errorf("expected %d workers, got %d", tt.want, p.workers)
			}
		})
	}
}

func TestPool_EveryJobHasOneOutcome(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var executed int32
	count := 25
	for i := 0; i < count; i++ {
		pool.Submit(verifiedJob(fmt.Sprintf("law::key::%d", i), &executed))
	}

	outcomes := pool.Wait()
	if len(outcomes) != count {
		t.Fatalf("expected %d outcomes, got %d", count, len(outcomes))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}

	seen := make(map[string]bool)
	for _, o := range outcomes {
		if seen[o.Key] {
			t.Errorf("duplicate outcome for %s", o.Key)
		}
		seen[o.Key] = true
		if o.Result.Status != model.StatusVerified {
			t.Errorf("unexpected status %s for %s", o.Result.Status, o.Key)
		}
	}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, maxConcurrent int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		pool.Submit(JobFunc{ID: fmt.Sprint(i), Fn: func(ctx context.Context) (model.Result, error) {
			curr := atomic.AddInt32(&current, 1)
			mu.Lock()
			if curr > maxConcurrent {
				maxConcurrent = curr
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return model.Verified(nil), nil
		}})
	}
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestPool_ErrorsAndPanics(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(JobFunc{ID: "fails", Fn: func(ctx context.Context) (model.Result, error) {
		return model.Result{}, errors.New("research failed")
	}})
	pool.Submit(JobFunc{ID: "panics", Fn: func(ctx context.Context) (model.Result, error) {
		panic("boom")
	}})
	pool.Submit(verifiedJob("ok", nil))

	byKey := make(map[string]Outcome)
	for _, o := range pool.Wait() {
		byKey[o.Key] = o
	}

	if len(byKey) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(byKey))
	}
	if byKey["fails"].Err == nil {
		t.Error("expected error for failing job")
	}
	if byKey["panics"].Err == nil {
		t.Error("expected error for panicking job")
	}
	if byKey["ok"].Err != nil {
		t.Errorf("unexpected error: %v", byKey["ok"].Err)
	}
}

func TestPool_CancelledContextReportsEveryJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(JobFunc{ID: "slow", Fn: func(ctx context.Context) (model.Result, error) {
		close(started)
		<-ctx.Done()
		return model.Result{}, ctx.Err()
	}})
	<-started
	cancel()
	pool.Submit(verifiedJob("queued", nil))

	outcomes := pool.Wait()
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", o.Key, o.Err)
		}
	}
}

func TestPool_SubmitAfterWait(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Wait()

	done := make(chan struct{})
	go func() {
		pool.Submit(verifiedJob("late", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after Wait blocked")
	}

	outcomes := pool.Wait()
	if len(outcomes) != 1 || outcomes[0].Err == nil {
		t.Errorf("expected one failed outcome, got %+v", outcomes)
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(JobFunc{ID: "long", Fn: func(ctx context.Context) (model.Result, error) {
		close(started)
		select {
		case <-ctx.Done():
			return model.Result{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return model.Verified(nil), nil
		}
	}})
	<-started

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown timed out")
	}
}

func TestPool_ShutdownAfterWaitReleasesContext(t *testing.T) {
	var jobCtx context.Context
	p := NewPool(context.Background(), 1)
	p.Start()
	p.Submit(JobFunc{ID: "capture", Fn: func(ctx context.Context) (model.Result, error) {
		jobCtx = ctx
		return model.Verified(nil), nil
	}})

	outcomes := p.Wait()
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("expected one clean outcome, got %+v", outcomes)
	}
	if jobCtx.Err() != nil {
		t.Fatal("job context cancelled before Shutdown")
	}

	p.Shutdown()
	if !errors.Is(jobCtx.Err(), context.Canceled) {
		t.Errorf("expected job context cancelled after Shutdown, got %v", jobCtx.Err())
	}
	if got := p.Wait(); len(got) != 1 {
		t.Errorf("expected outcomes to survive Shutdown, got %d", len(got))
	}
}
