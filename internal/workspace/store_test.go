package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"array/internal/clone"
	"array/internal/dialog"
	"array/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRepository_ExistingMatchCommitsWithoutClone(t *testing.T) {
	root := t.TempDir()
	initRepo(t, filepath.Join(root, "widgets"), "git@github.com:acme/widgets.git")
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))

	st := h.store.State()
	require.NotNil(t, st.SelectedRepository)
	assert.Equal(t, widgets, *st.SelectedRepository)
	assert.Equal(t, filepath.Join(root, "widgets"), st.DerivedPath)
	assert.True(t, st.PathExists)
	assert.False(t, st.IsSyncing)
	assert.False(t, st.IsValidating)
	assert.Equal(t, 0, h.cloner.count())

	saved, err := h.persistence.LoadSelection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, widgets, *saved)
}

// Workspace root ~/work, nothing on disk, probe succeeds: one clone targets
// ~/work/widgets and the path is marked as existing once it succeeds.
func TestSelectRepository_MissingPathClonesAndReconciles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	h := newHarness(t, "~/work", 0)
	target := filepath.Join(home, "work", "widgets")

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))

	st := h.store.State()
	assert.Equal(t, target, st.DerivedPath)
	assert.False(t, st.PathExists)
	assert.True(t, st.IsSyncing)

	ops := h.orchestrator.Registry().Active()
	require.Len(t, ops, 1)
	assert.Equal(t, target, ops[0].TargetPath)
	assert.Equal(t, clone.StatusCloning, ops[0].Status)

	call := h.cloner.call(t, 0)
	assert.Equal(t, target, call.target)
	assert.Equal(t, "git@github.com:acme/widgets.git", call.url)

	// still cloning: the poller keeps waiting
	time.Sleep(5 * testInterval)
	assert.True(t, h.store.State().IsSyncing)
	assert.False(t, h.store.State().PathExists)

	initRepo(t, target, "git@github.com:acme/widgets.git")
	call.result <- 0
	h.orchestrator.Wait()

	require.Eventually(t, func() bool { return h.store.State().PathExists }, time.Second, testInterval/2)
	h.eventuallyNotSyncing(t)
	assert.Equal(t, 1, h.cloner.count())
}

// A different repository at the path and the user picks Cancel: nothing is
// cloned and the state is left as it was.
func TestSelectRepository_MismatchCancelLeavesStateUntouched(t *testing.T) {
	root := t.TempDir()
	initRepo(t, filepath.Join(root, "widgets"), "git@github.com:acme/other.git")
	h := newHarness(t, root, 0)

	err := h.store.SelectRepository(context.Background(), widgets)
	require.ErrorIs(t, err, ErrMismatchCancelled)

	st := h.store.State()
	assert.Nil(t, st.SelectedRepository)
	assert.False(t, st.PathExists)
	assert.False(t, st.IsSyncing)
	assert.Equal(t, 0, h.cloner.count())
	assert.Equal(t, 0, h.orchestrator.Registry().Len())

	require.Len(t, h.dialog.Shown(), 1)
	prompt := h.dialog.Shown()[0]
	assert.Equal(t, dialog.KindConfirm, prompt.Kind)
	assert.Equal(t, []string{"Cancel", "Delete and Clone"}, prompt.Buttons)
	assert.Contains(t, prompt.Detail, "acme/other")
	assert.Contains(t, prompt.Detail, "acme/widgets")

	_, err = os.Stat(filepath.Join(root, "widgets", ".git"))
	assert.NoError(t, err, "cancel must not touch the existing repository")
}

func TestSelectRepository_MismatchCancelKeepsPreviousSelection(t *testing.T) {
	root := t.TempDir()
	initRepo(t, filepath.Join(root, "gizmos"), "git@github.com:acme/gizmos.git")
	initRepo(t, filepath.Join(root, "widgets"), "git@github.com:acme/other.git")
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), gizmos))
	before := h.store.State()

	err := h.store.SelectRepository(context.Background(), widgets)
	require.ErrorIs(t, err, ErrMismatchCancelled)

	after := h.store.State()
	require.NotNil(t, after.SelectedRepository)
	assert.Equal(t, gizmos, *after.SelectedRepository)
	assert.Equal(t, before.DerivedPath, after.DerivedPath)
	assert.Equal(t, before.PathExists, after.PathExists)

	saved, _ := h.persistence.LoadSelection(context.Background())
	assert.Equal(t, gizmos, *saved)
}

func TestSelectRepository_MismatchDeleteAndClone(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "widgets")
	initRepo(t, target, "git@github.com:acme/other.git")
	h := newHarness(t, root, 1)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err), "mismatched directory should be deleted before cloning")

	call := h.cloner.call(t, 0)
	assert.Equal(t, target, call.target)
	assert.True(t, h.store.State().IsSyncing)

	initRepo(t, target, "https://github.com/acme/widgets.git")
	call.result <- 0
	h.orchestrator.Wait()

	require.Eventually(t, func() bool { return h.store.State().PathExists }, time.Second, testInterval/2)
}

// Probe output says "Permission denied": nothing is spawned and the error
// dialog carries the key setup guidance.
func TestSelectRepository_PermissionDeniedAbortsBeforeClone(t *testing.T) {
	root := t.TempDir()
	prober := clone.SSHProber{
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("git@github.com: Permission denied (publickey)."), errors.New("exit status 255")
		},
	}
	h := newHarness(t, root, 0, withProber(prober))

	err := h.store.SelectRepository(context.Background(), widgets)

	var pe *clone.ProbeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, clone.ProbeKindCredentials, pe.Kind)
	assert.Equal(t, 0, h.cloner.count())
	assert.Equal(t, 0, h.orchestrator.Registry().Len())

	st := h.store.State()
	assert.False(t, st.PathExists)
	assert.False(t, st.IsSyncing)

	require.Equal(t, 1, h.dialog.Count(dialog.KindError))
	shown := h.dialog.Shown()[0]
	assert.Contains(t, shown.Detail, clone.KeySetupGuidance("github.com"))
}

// "Delete and Clone" was chosen but the remote refuses the key: the
// repository already on disk must survive.
func TestSelectRepository_MismatchKeptWhenProbeFails(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "widgets")
	initRepo(t, target, "git@github.com:acme/other.git")
	prober := clone.SSHProber{
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("git@github.com: Permission denied (publickey)."), errors.New("exit status 255")
		},
	}
	h := newHarness(t, root, 1, withProber(prober))

	err := h.store.SelectRepository(context.Background(), widgets)

	var pe *clone.ProbeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, clone.ProbeKindCredentials, pe.Kind)
	assert.DirExists(t, filepath.Join(target, ".git"))
	assert.Equal(t, 0, h.cloner.count())
	assert.Equal(t, 1, h.dialog.Count(dialog.KindConfirm))

	result := repository.NewValidator(nil).Validate(target, widgets)
	require.NotNil(t, result.Detected)
	assert.Equal(t, "other", result.Detected.Repository)
}

func TestSelectRepository_WorkspaceNotConfigured(t *testing.T) {
	h := newHarness(t, "", 0)

	err := h.store.SelectRepository(context.Background(), widgets)
	require.ErrorIs(t, err, repository.ErrWorkspaceNotConfigured)

	assert.Equal(t, 0, h.cloner.count())
	assert.Nil(t, h.store.State().SelectedRepository)

	require.Equal(t, 1, h.dialog.Count(dialog.KindError))
	assert.Equal(t, "Workspace not configured", h.dialog.Shown()[0].Title)
}

func TestSelectRepository_NotARepositoryGoesStraightToClone(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "widgets"), 0o755))
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))

	assert.Empty(t, h.dialog.Shown(), "no mismatch prompt for a plain directory")
	h.cloner.call(t, 0)
	assert.DirExists(t, filepath.Join(root, "widgets"), "plain directories are never deleted")
}

func TestSelectRepository_InvalidIdentifierIsNoop(t *testing.T) {
	h := newHarness(t, t.TempDir(), 0)

	err := h.store.SelectRepository(context.Background(), repository.Identifier{Organization: "acme"})
	require.Error(t, err)
	assert.Nil(t, h.store.State().SelectedRepository)
	assert.Empty(t, h.dialog.Shown())
}

func TestPoller_NotStartedWithoutDerivedPath(t *testing.T) {
	h := newHarness(t, t.TempDir(), 0)

	h.store.update(func(st *State) {
		id := widgets
		st.SelectedRepository = &id
		st.DerivedPath = ""
	})
	h.store.startPoller()

	assert.False(t, h.store.State().IsSyncing)
	h.store.mu.Lock()
	assert.Nil(t, h.store.pollCancel)
	h.store.mu.Unlock()
}

func TestPoller_StopsAfterFailedClone(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	call := h.cloner.call(t, 0)

	time.Sleep(3 * testInterval)
	assert.True(t, h.store.State().IsSyncing)

	call.result <- 128
	h.orchestrator.Wait()

	require.Eventually(t, func() bool { return !h.store.State().IsSyncing }, 3*testInterval+100*time.Millisecond, time.Millisecond)
	st := h.store.State()
	assert.False(t, st.PathExists)
	require.NotNil(t, st.SelectedRepository)
	assert.Equal(t, widgets, *st.SelectedRepository)
}

func TestPoller_RestartStopsPrevious(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	h.store.mu.Lock()
	firstGen := h.store.pollGen
	h.store.mu.Unlock()

	h.store.startPoller()
	h.store.mu.Lock()
	secondGen := h.store.pollGen
	h.store.mu.Unlock()

	assert.Greater(t, secondGen, firstGen)
	assert.False(t, h.store.tick(firstGen), "ticks from a replaced poller are ignored")
	assert.True(t, h.store.State().IsSyncing)
}

func TestClearRepository(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	h.cloner.call(t, 0)
	require.True(t, h.orchestrator.HasActive(widgets))

	require.NoError(t, h.store.ClearRepository(context.Background()))

	assert.Equal(t, State{}, h.store.State())
	assert.False(t, h.orchestrator.HasActive(widgets))
	saved, _ := h.persistence.LoadSelection(context.Background())
	assert.Nil(t, saved)
}

func TestValidateAndUpdatePath_FollowsWorkspaceRoot(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	initRepo(t, filepath.Join(first, "widgets"), "git@github.com:acme/widgets.git")
	h := newHarness(t, first, 0)

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	assert.True(t, h.store.State().PathExists)

	h.root = second
	require.NoError(t, h.store.ValidateAndUpdatePath(context.Background()))

	st := h.store.State()
	assert.Equal(t, filepath.Join(second, "widgets"), st.DerivedPath)
	assert.False(t, st.PathExists)
	assert.Equal(t, 0, h.cloner.count(), "revalidation never clones")

	h.root = ""
	err := h.store.ValidateAndUpdatePath(context.Background())
	require.ErrorIs(t, err, repository.ErrWorkspaceNotConfigured)
	assert.Empty(t, h.store.State().DerivedPath)
}

func TestValidateAndUpdatePath_NoSelection(t *testing.T) {
	h := newHarness(t, t.TempDir(), 0)

	require.NoError(t, h.store.ValidateAndUpdatePath(context.Background()))
	assert.Equal(t, State{}, h.store.State())
}

func TestLoad_RestoresSelectionAndRecomputes(t *testing.T) {
	root := t.TempDir()
	initRepo(t, filepath.Join(root, "widgets"), "git@github.com:acme/widgets.git")
	h := newHarness(t, root, 0)

	id := widgets
	require.NoError(t, h.persistence.SaveSelection(context.Background(), &id))

	require.NoError(t, h.store.Load(context.Background()))

	st := h.store.State()
	require.NotNil(t, st.SelectedRepository)
	assert.Equal(t, widgets, *st.SelectedRepository)
	assert.Equal(t, filepath.Join(root, "widgets"), st.DerivedPath)
	assert.True(t, st.PathExists)
}

func TestLoad_UnconfiguredWorkspaceIsNotAnError(t *testing.T) {
	h := newHarness(t, "", 0)

	id := widgets
	require.NoError(t, h.persistence.SaveSelection(context.Background(), &id))

	require.NoError(t, h.store.Load(context.Background()))
	st := h.store.State()
	require.NotNil(t, st.SelectedRepository)
	assert.False(t, st.PathExists)
	assert.Empty(t, h.dialog.Shown())
}

func TestSubscribe_ReceivesCommittedStates(t *testing.T) {
	root := t.TempDir()
	initRepo(t, filepath.Join(root, "widgets"), "git@github.com:acme/widgets.git")
	h := newHarness(t, root, 0)

	var mu sync.Mutex
	var states []State
	unsubscribe := h.store.Subscribe(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	unsubscribe()
	require.NoError(t, h.store.ClearRepository(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.True(t, states[0].IsValidating)
	last := states[len(states)-1]
	assert.True(t, last.PathExists)
	for _, st := range states {
		if st.PathExists {
			assert.False(t, st.IsValidating)
		}
	}
}

func TestPathExistsOnlyAfterValidValidation(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root, 0)

	var mu sync.Mutex
	violations := 0
	h.store.Subscribe(func(st State) {
		if !st.PathExists || st.SelectedRepository == nil {
			return
		}
		res := repository.NewValidator(nil).Validate(st.DerivedPath, *st.SelectedRepository)
		if !res.Valid {
			mu.Lock()
			violations++
			mu.Unlock()
		}
	})

	require.NoError(t, h.store.SelectRepository(context.Background(), widgets))
	call := h.cloner.call(t, 0)

	// a directory appears but it is not the repository yet
	require.NoError(t, os.MkdirAll(filepath.Join(root, "widgets"), 0o755))
	call.result <- 0
	h.orchestrator.Wait()
	h.eventuallyNotSyncing(t)

	assert.False(t, h.store.State().PathExists)
	mu.Lock()
	assert.Zero(t, violations)
	mu.Unlock()
}
