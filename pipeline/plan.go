package pipeline

import (
	"time"

	"github.com/deckhand-io/deckhand/types"
)

// Tuning carries the per-task execution knobs shared by every task of a
// plan. Zero values fall back to the plan defaults.
type Tuning struct {
	// ResearchTimeout bounds one research or compile attempt.
	ResearchTimeout time.Duration
	// RenderTimeout bounds one render or review attempt.
	RenderTimeout time.Duration
	// MaxAttempts is the retry budget per task, counting the first attempt.
	MaxAttempts int
	// BaseDelay is the initial backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
}

// Plan defaults, chosen for slow LLM-backed collaborators.
const (
	DefaultResearchTimeout = 5 * time.Minute
	DefaultRenderTimeout   = 3 * time.Minute
	DefaultMaxAttempts     = 3
)

func (t Tuning) withDefaults() Tuning {
	if t.ResearchTimeout <= 0 {
		t.ResearchTimeout = DefaultResearchTimeout
	}
	if t.RenderTimeout <= 0 {
		t.RenderTimeout = DefaultRenderTimeout
	}
	if t.MaxAttempts < 1 {
		t.MaxAttempts = DefaultMaxAttempts
	}
	if t.BaseDelay <= 0 {
		t.BaseDelay = DefaultBaseDelay
	}
	if t.MaxDelay <= 0 {
		t.MaxDelay = DefaultMaxDelay
	}
	return t
}

func (t Tuning) task(name string, kind types.TaskKind, params map[string]string) types.TaskSpec {
	timeout := t.ResearchTimeout
	if kind == types.TaskRender || kind == types.TaskReview {
		timeout = t.RenderTimeout
	}
	return types.TaskSpec{
		Name:        name,
		Kind:        kind,
		Params:      params,
		Timeout:     timeout,
		MaxAttempts: t.MaxAttempts,
		BaseDelay:   t.BaseDelay,
		MaxDelay:    t.MaxDelay,
	}
}

// ThesisResearchTasks names the parallel research tasks of the thesis plan.
var ThesisResearchTasks = []string{
	"emerging-trends",
	"taxonomy-ecosystem",
	"macro-thesis",
	"company-filters",
	"candidate-companies",
}

// ThesisPlan builds the canonical four-phase investment thesis pipeline:
// five parallel research tasks, a compile step that needs at least one
// research artifact, a deck render that needs the compiled document, and a
// final review pass over the rendered deck.
func ThesisPlan(tuning Tuning) []types.PhaseSpec {
	t := tuning.withDefaults()

	research := make([]types.TaskSpec, 0, len(ThesisResearchTasks))
	for _, name := range ThesisResearchTasks {
		research = append(research, t.task(name, types.TaskResearch, map[string]string{
			"angle": name,
		}))
	}

	return []types.PhaseSpec{
		{
			Name:     "research",
			Position: 1,
			Tasks:    research,
			Requires: types.NoRequirement(),
		},
		{
			Name:     "compile",
			Position: 2,
			Tasks:    []types.TaskSpec{t.task("compile", types.TaskCompile, nil)},
			Requires: types.AtLeastOne(ThesisResearchTasks...),
		},
		{
			Name:     "present",
			Position: 3,
			Tasks:    []types.TaskSpec{t.task("render-deck", types.TaskRender, nil)},
			Requires: types.All("compile"),
		},
		{
			Name:     "review",
			Position: 4,
			Tasks:    []types.TaskSpec{t.task("final-review", types.TaskReview, nil)},
			Requires: types.All("render-deck"),
		},
	}
}

// NetworkingResearchTasks names the research tasks of the networking plan.
var NetworkingResearchTasks = []string{
	"target-firms",
	"warm-paths",
}

// NetworkingPlan builds the three-phase networking strategy pipeline: two
// parallel research tasks, a strategy compile step, and a deck render.
// No review phase; the strategy memo ships as compiled.
func NetworkingPlan(tuning Tuning) []types.PhaseSpec {
	t := tuning.withDefaults()

	research := make([]types.TaskSpec, 0, len(NetworkingResearchTasks))
	for _, name := range NetworkingResearchTasks {
		research = append(research, t.task(name, types.TaskResearch, map[string]string{
			"angle": name,
		}))
	}

	return []types.PhaseSpec{
		{
			Name:     "research",
			Position: 1,
			Tasks:    research,
			Requires: types.NoRequirement(),
		},
		{
			Name:     "compile",
			Position: 2,
			Tasks:    []types.TaskSpec{t.task("compile", types.TaskCompile, nil)},
			Requires: types.AtLeastOne(NetworkingResearchTasks...),
		},
		{
			Name:     "present",
			Position: 3,
			Tasks:    []types.TaskSpec{t.task("render-deck", types.TaskRender, nil)},
			Requires: types.All("compile"),
		},
	}
}

// PlanByName resolves a plan name from configuration.
func PlanByName(name string, tuning Tuning) ([]types.PhaseSpec, bool) {
	switch name {
	case "", "thesis":
		return ThesisPlan(tuning), true
	case "networking":
		return NetworkingPlan(tuning), true
	default:
		return nil, false
	}
}
