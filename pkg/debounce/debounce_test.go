package debounce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleCoalescesPerKey(t *testing.T) {
	d := New(30 * time.Millisecond)

	var mu sync.Mutex
	var got []int
	for i := 1; i <= 5; i++ {
		v := i
		d.Schedule("line-a", func() {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		})
	}

	waitFor(t, func() bool { return len(d.Keys()) == 0 })
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected only the last callback to run, got %v", got)
	}
}

func TestScheduleKeysAreIndependent(t *testing.T) {
	d := New(20 * time.Millisecond)
	var count atomic.Int32
	d.Schedule("a", func() { count.Add(1) })
	d.Schedule("b", func() { count.Add(1) })

	waitFor(t, func() bool { return count.Load() == 2 })
	d.Wait()
}

func TestKeysListsArmedCallbacks(t *testing.T) {
	d := New(time.Hour)
	defer d.Stop()
	for _, key := range []string{"a", "b", "c"} {
		d.Schedule(key, func() {})
	}
	if len(d.Keys()) != 3 {
		t.Fatalf("expected 3 pending keys, got %v", d.Keys())
	}
	if !d.Cancel("b") || d.Cancel("b") {
		t.Fatal("cancel should drop b exactly once")
	}
	if len(d.Keys()) != 2 {
		t.Fatalf("expected 2 pending keys after cancel, got %v", d.Keys())
	}
}

func TestCancelAndStop(t *testing.T) {
	d := New(10 * time.Millisecond)
	var count atomic.Int32
	d.Schedule("a", func() { count.Add(1) })
	if !d.Cancel("a") {
		t.Fatal("expected cancel to drop the pending callback")
	}

	d.Schedule("b", func() { count.Add(1) })
	d.Stop()
	if d.Schedule("c", func() { count.Add(1) }) {
		t.Fatal("schedule after stop must be rejected")
	}

	time.Sleep(40 * time.Millisecond)
	d.Wait()
	if count.Load() != 0 {
		t.Fatalf("no callback should have run, got %d", count.Load())
	}
}

func TestWaitBlocksOnRunningCallback(t *testing.T) {
	d := New(time.Millisecond)
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool
	d.Schedule("a", func() {
		close(started)
		<-release
		finished.Store(true)
	})

	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	d.Wait()
	if !finished.Load() {
		t.Fatal("Wait returned before the callback finished")
	}
}

func TestLatestOnlyNewestWins(t *testing.T) {
	l := NewLatest[string](20 * time.Millisecond)

	type outcome struct {
		value string
		err   error
	}
	results := make([]outcome, 3)
	var wg sync.WaitGroup
	for i, q := range []string{"r", "rt", "rtx"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			v, err := l.Do(context.Background(), func(context.Context) (string, error) {
				return "result:" + q, nil
			})
			results[i] = outcome{v, err}
		}(i, q)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if !errors.Is(results[i].err, ErrSuperseded) {
			t.Fatalf("call %d should be superseded, got %+v", i, results[i])
		}
	}
	if results[2].err != nil || results[2].value != "result:rtx" {
		t.Fatalf("latest call should win, got %+v", results[2])
	}
}

func TestLatestDiscardsResultOfStaleInFlightCall(t *testing.T) {
	l := NewLatest[int](0)
	inFlight := make(chan struct{})
	release := make(chan struct{})

	var first error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, first = l.Do(context.Background(), func(ctx context.Context) (int, error) {
			close(inFlight)
			<-release
			return 1, nil
		})
	}()

	<-inFlight
	v, err := l.Do(context.Background(), func(context.Context) (int, error) { return 2, nil })
	close(release)
	<-done

	if err != nil || v != 2 {
		t.Fatalf("expected newest result 2, got %d %v", v, err)
	}
	if !errors.Is(first, ErrSuperseded) {
		t.Fatalf("stale call must be superseded, got %v", first)
	}
}

func TestLatestPropagatesParentCancellation(t *testing.T) {
	l := NewLatest[int](time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Do(ctx, func(context.Context) (int, error) { return 1, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLatestCancel(t *testing.T) {
	l := NewLatest[int](time.Hour)
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Do(context.Background(), func(context.Context) (int, error) { return 1, nil })
		errCh <- err
	}()

	waitFor(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.cancel != nil
	})
	l.Cancel()
	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
