package clone

import (
	"context"
	"sync"
	"testing"
	"time"

	"array/internal/logging"
	"array/internal/repository"

	"github.com/stretchr/testify/require"
)

var (
	widgets = repository.Identifier{Organization: "acme", Repository: "widgets"}
	gizmos  = repository.Identifier{Organization: "acme", Repository: "gizmos"}
)

type step struct {
	out  string
	ack  chan struct{}
	done bool
	code int
	err  error
}

type scriptedRun struct {
	url    string
	target string
	steps  chan step
}

// emit returns once onOutput has returned for the chunk.
func (r *scriptedRun) emit(out string) {
	ack := make(chan struct{})
	r.steps <- step{out: out, ack: ack}
	<-ack
}

func (r *scriptedRun) exit(code int)       { r.steps <- step{done: true, code: code} }
func (r *scriptedRun) spawnFail(err error) { r.steps <- step{done: true, code: -1, err: err} }

// scriptedCloner blocks every Clone call until the test feeds it steps.
type scriptedCloner struct {
	mu   sync.Mutex
	runs []*scriptedRun
}

func (c *scriptedCloner) Clone(_ context.Context, url, target string, onOutput func([]byte)) (int, error) {
	run := &scriptedRun{url: url, target: target, steps: make(chan step)}
	c.mu.Lock()
	c.runs = append(c.runs, run)
	c.mu.Unlock()

	for s := range run.steps {
		if s.done {
			return s.code, s.err
		}
		onOutput([]byte(s.out))
		close(s.ack)
	}
	return 0, nil
}

func (c *scriptedCloner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func (c *scriptedCloner) run(t *testing.T, i int) *scriptedRun {
	t.Helper()
	require.Eventually(t, func() bool { return c.count() > i }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[i]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *eventRecorder) record(ev ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.events...)
}

func okProber() Prober {
	return ProberFunc(func(context.Context, string) error { return nil })
}

func newTestOrchestrator(t *testing.T, prober Prober, cloner Cloner) (*Orchestrator, *eventRecorder) {
	t.Helper()

	logger, _ := logging.NewTestLogger()
	o := NewOrchestrator(Options{
		Prober: prober,
		Cloner: cloner,
		Logger: logger,
	})
	rec := &eventRecorder{}
	unsubscribe := o.Subscribe(rec.record)
	t.Cleanup(unsubscribe)
	return o, rec
}
