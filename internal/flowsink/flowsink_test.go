package flowsink_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rugwirobaker/flowsink/internal/flowsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDelegate records every DidYield batch and DidTerminate call, and
// asserts (via the overlapped flag, which tests check) that no two callouts
// ever overlap. It is a small mutex-guarded recorder with optional
// channels the test can block on.
type mockDelegate struct {
	mu sync.Mutex

	batches      [][]flowsink.Element
	terminated   bool
	terminateErr error
	inCallout    bool
	overlapped   bool

	// onYield, if set, runs synchronously inside DidYield, letting
	// tests perform reentrant calls (e.g. SetWritable) from the
	// delegate's own goroutine.
	onYield func(batch []flowsink.Element)

	// yielded is signaled once per DidYield call, for tests that need
	// to synchronize with an asynchronous delivery.
	yielded chan []flowsink.Element
}

func newMockDelegate() *mockDelegate {
	return &mockDelegate{yielded: make(chan []flowsink.Element, 64)}
}

func (m *mockDelegate) DidYield(elements []flowsink.Element) {
	m.mu.Lock()
	if m.inCallout {
		m.overlapped = true
	}
	m.inCallout = true
	batch := append([]flowsink.Element{}, elements...)
	m.batches = append(m.batches, batch)
	m.mu.Unlock()

	if m.onYield != nil {
		m.onYield(elements)
	}

	m.mu.Lock()
	m.inCallout = false
	m.mu.Unlock()

	select {
	case m.yielded <- batch:
	default:
	}
}

func (m *mockDelegate) DidTerminate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inCallout {
		m.overlapped = true
	}
	if m.terminated {
		panic("mockDelegate: DidTerminate called more than once")
	}
	m.terminated = true
	m.terminateErr = err
}

func (m *mockDelegate) allElements() []flowsink.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []flowsink.Element
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func (m *mockDelegate) terminatedWith() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated, m.terminateErr
}

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// Scenario 1: basic writable yield.
func TestBasicWritableYield(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, _ := flowsink.New(true, d)

	err := writer.Yield(context.Background(), 1, 2, 3)
	require.NoError(t, err)
	if diff := cmp.Diff([]flowsink.Element{1, 2, 3}, d.allElements()); diff != "" {
		t.Errorf("delivered elements mismatch (-want +got):\n%s", diff)
	}

	writer.Finish()
	ok, terr := d.terminatedWith()
	assert.True(ok)
	assert.NoError(terr)
	assert.False(d.overlapped)
}

// Scenario 2: back-pressure then release.
func TestBackpressureThenRelease(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, sink := flowsink.New(false, d)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() { defer wg.Done(); errs[0] = writer.Yield(context.Background(), 1) }()
	go func() { defer wg.Done(); errs[1] = writer.Yield(context.Background(), 2) }()

	// Give both goroutines a chance to park.
	time.Sleep(20 * time.Millisecond)

	sink.SetWritable(true)
	wg.Wait()

	assert.NoError(errs[0])
	assert.NoError(errs[1])

	all := d.allElements()
	assert.ElementsMatch([]flowsink.Element{1, 2}, all)
	assert.False(d.overlapped)
}

// Scenario 3: reentrant toggle from inside DidYield.
func TestReentrantToggle(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, sink := flowsink.New(true, d)

	second := make(chan struct{})
	var once sync.Once
	d.onYield = func(batch []flowsink.Element) {
		once.Do(func() {
			sink.SetWritable(false)
			sink.SetWritable(true)
			go func() {
				assert.NoError(writer.Yield(context.Background(), 2))
				close(second)
			}()
			// Give the reentrant Yield time to enqueue before this
			// callout returns, proving it doesn't get its own
			// DidYield invocation until this one is done.
			time.Sleep(20 * time.Millisecond)
		})
	}

	require.NoError(t, writer.Yield(context.Background(), 1))
	<-second

	waitFor(t, func() bool { return len(d.allElements()) == 2 })
	assert.Equal([]flowsink.Element{1, 2}, d.allElements())
	assert.False(d.overlapped)
}

// Scenario 4: cancel during suspension.
func TestCancelDuringSuspension(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, sink := flowsink.New(false, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- writer.Yield(ctx, 9) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled yield did not resume")
	}

	assert.Empty(d.allElements())

	sink.SetWritable(true)
	waitFor(t, func() bool { return len(d.allElements()) == 1 })
	assert.Equal([]flowsink.Element{9}, d.allElements())
}

// Scenario 5: sink finish with suspended producers.
func TestSinkFinishWithSuspendedProducers(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, sink := flowsink.New(false, d)
	_ = writer

	sentinel := errors.New("boom")
	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() { defer wg.Done(); errs[0] = writer.Yield(context.Background(), 1) }()
	go func() { defer wg.Done(); errs[1] = writer.Yield(context.Background(), 2) }()

	time.Sleep(20 * time.Millisecond)
	sink.FinishWithError(sentinel)
	wg.Wait()

	assert.ErrorIs(errs[0], sentinel)
	assert.ErrorIs(errs[1], sentinel)
	assert.Empty(d.allElements())

	ok, terr := d.terminatedWith()
	assert.True(ok)
	assert.ErrorIs(terr, sentinel)
}

// Scenario 6: writer finish drains then terminates.
func TestWriterFinishDrainsThenTerminates(t *testing.T) {
	assert := assert.New(t)
	d := newMockDelegate()
	writer, sink := flowsink.New(false, d)

	done := make(chan error, 1)
	go func() { done <- writer.Yield(context.Background(), 1, 2) }()
	time.Sleep(20 * time.Millisecond)

	writer.Finish()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("parked yield did not resume after writer.Finish")
	}

	sink.SetWritable(true)
	waitFor(t, func() bool { ok, _ := d.terminatedWith(); return ok })

	assert.Equal([]flowsink.Element{1, 2}, d.allElements())
	ok, terr := d.terminatedWith()
	assert.True(ok)
	assert.NoError(terr)

	err := writer.Yield(context.Background(), 3)
	assert.ErrorIs(err, flowsink.ErrAlreadyFinished)
}

func TestYieldNoElementsIsNoop(t *testing.T) {
	d := newMockDelegate()
	writer, _ := flowsink.New(false, d)
	assert.NoError(t, writer.Yield(context.Background()))
	assert.Empty(t, d.allElements())
}

func TestAlreadyFinishedSink(t *testing.T) {
	d := newMockDelegate()
	writer, sink := flowsink.New(true, d)
	sink.Finish()
	err := writer.Yield(context.Background(), 1)
	assert.ErrorIs(t, err, flowsink.ErrAlreadyFinished)
}

func TestTerminateAtMostOnce(t *testing.T) {
	d := newMockDelegate()
	writer, sink := flowsink.New(true, d)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer.Finish()
			sink.Finish()
		}()
	}
	wg.Wait()

	ok, terr := d.terminatedWith()
	assert.True(t, ok)
	assert.NoError(t, terr)
}

func TestWriterCloseInvariant(t *testing.T) {
	d := newMockDelegate()
	writer, sink := flowsink.New(true, d)
	_ = sink
	assert.NoError(t, writer.Close())

	ok, _ := d.terminatedWith()
	assert.True(t, ok)
}
