package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/deckhand-io/deckhand/types"
)

func watchMeta() *types.RunMeta {
	return &types.RunMeta{
		RunID:     "run-watch",
		Sector:    "climate-tech",
		Region:    "nordics",
		CreatedAt: time.Now(),
	}
}

func newWatch() WatchModel {
	return NewWatchModel(watchMeta(), []string{"research", "compile", "present", "review"}, nil)
}

func TestWatchModel_PhaseProgression(t *testing.T) {
	m := newWatch()

	m = m.apply(types.NewPhaseStarted(watchMeta(), "research", 1, 4))
	if p := m.phase("research"); p == nil || !p.started {
		t.Fatal("research phase should be marked started")
	}

	m = m.apply(types.NewPhaseFinished(watchMeta(), "research", 1, 4, 3, 2))
	p := m.phase("research")
	if !p.finished || p.succeeded != 3 || p.failed != 2 {
		t.Errorf("research phase state = %+v, want finished with 3/2", *p)
	}

	view := m.View()
	if !strings.Contains(view, "research") {
		t.Error("view should name the research phase")
	}
	if !strings.Contains(view, "2 failed") {
		t.Error("view should show the failed task count")
	}
}

func TestWatchModel_Finalized(t *testing.T) {
	m := newWatch()
	refs := []types.ArtifactRef{
		{RunID: "run-watch", TaskName: "compile", Attempt: 1},
	}

	m = m.apply(types.NewRunFinalized(watchMeta(), types.RunPartialSuccess, refs))
	if !m.done {
		t.Fatal("model should be done after run_finalized")
	}

	view := m.View()
	if !strings.Contains(view, "partial success") {
		t.Errorf("view should render partial success, got:\n%s", view)
	}
	if !strings.Contains(view, "1 artifacts") {
		t.Errorf("view should show the artifact count, got:\n%s", view)
	}
}

func TestWatchModel_AbortShowsReason(t *testing.T) {
	m := newWatch()
	m = m.apply(types.NewPhaseStarted(watchMeta(), "research", 1, 4))
	m = m.apply(types.NewPhaseFinished(watchMeta(), "research", 1, 4, 0, 5))
	m = m.apply(types.NewRunFailed(watchMeta(), "compile requires at least one research artifact"))

	view := m.View()
	if !strings.Contains(view, "compile requires") {
		t.Errorf("view should show the abort reason, got:\n%s", view)
	}
	// Phases never reached render as skipped once the run aborts.
	if !strings.Contains(view, "skipped") {
		t.Errorf("unreached phases should render skipped, got:\n%s", view)
	}
}

func TestWatchModel_UnknownPhaseIgnored(t *testing.T) {
	m := newWatch()
	m = m.apply(types.NewPhaseStarted(watchMeta(), "no-such-phase", 9, 9))
	for i := range m.phases {
		if m.phases[i].started {
			t.Error("unknown phase event must not mark any known phase started")
		}
	}
}
