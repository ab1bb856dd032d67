package workspace

import (
	"context"
	"sync"
	"testing"
	"time"

	"array/internal/clone"
	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/repository"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/stretchr/testify/require"
)

const testInterval = 10 * time.Millisecond

var (
	widgets = repository.Identifier{Organization: "acme", Repository: "widgets"}
	gizmos  = repository.Identifier{Organization: "acme", Repository: "gizmos"}
)

// initRepo creates a working tree at path whose origin is remote.
func initRepo(t *testing.T, path, remote string) {
	t.Helper()

	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remote}})
	require.NoError(t, err)
}

// pendingClone is one blocked Clone call.
type pendingClone struct {
	url    string
	target string
	result chan int
}

// blockingCloner holds every clone until the test calls finish.
type blockingCloner struct {
	mu    sync.Mutex
	calls []*pendingClone
}

func (c *blockingCloner) Clone(_ context.Context, url, target string, onOutput func([]byte)) (int, error) {
	p := &pendingClone{url: url, target: target, result: make(chan int)}
	c.mu.Lock()
	c.calls = append(c.calls, p)
	c.mu.Unlock()

	onOutput([]byte("Cloning into '" + target + "'...\n"))
	return <-p.result, nil
}

func (c *blockingCloner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *blockingCloner) call(t *testing.T, i int) *pendingClone {
	t.Helper()
	require.Eventually(t, func() bool { return c.count() > i }, time.Second, time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

type harness struct {
	store        *Store
	orchestrator *clone.Orchestrator
	cloner       *blockingCloner
	dialog       *dialog.Static
	persistence  *MemoryPersistence
	root         string
}

type harnessOption func(*clone.Options, *Options)

func withProber(p clone.Prober) harnessOption {
	return func(co *clone.Options, _ *Options) { co.Prober = p }
}

func withDialog(d dialog.Dialog) harnessOption {
	return func(_ *clone.Options, so *Options) { so.Dialog = d }
}

func newHarness(t *testing.T, root string, answer int, opts ...harnessOption) *harness {
	t.Helper()

	logger, _ := logging.NewTestLogger()
	cloner := &blockingCloner{}
	static := dialog.NewStatic(answer)
	persistence := &MemoryPersistence{}

	co := clone.Options{
		Prober: clone.ProberFunc(func(context.Context, string) error { return nil }),
		Cloner: cloner,
		Logger: logger,
	}
	h := &harness{cloner: cloner, dialog: static, persistence: persistence, root: root}
	so := Options{
		WorkspaceRoot: func() string { return h.root },
		Dialog:        static,
		Persistence:   persistence,
		PollInterval:  testInterval,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&co, &so)
	}

	h.orchestrator = clone.NewOrchestrator(co)
	so.Cloner = h.orchestrator
	h.store = NewStore(so)

	t.Cleanup(func() {
		_ = h.store.ClearRepository(context.Background())
		cloner.mu.Lock()
		pending := append([]*pendingClone(nil), cloner.calls...)
		cloner.mu.Unlock()
		for _, p := range pending {
			select {
			case p.result <- 1:
			default:
			}
		}
	})
	return h
}

func (h *harness) eventuallyNotSyncing(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return !h.store.State().IsSyncing }, time.Second, testInterval/2)
}
