package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-studio/internal/model"
)

type stubRunner struct {
	outputs map[NodeID]string
	fail    map[NodeID]error
	seen    []NodeID
}

func (s *stubRunner) Execute(_ context.Context, n Node, rc *RunContext) (*Result, error) {
	s.seen = append(s.seen, n.ID())
	if err := s.fail[n.ID()]; err != nil {
		return nil, err
	}
	return &Result{Output: Resolve(s.outputs[n.ID()], rc)}, nil
}

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) SaveRun(ctx context.Context, run *model.WorkflowRun) error {
	return m.Called(ctx, run).Error(0)
}

func node(id string, kind string) Node {
	raw := json.RawMessage(`{"id":"` + id + `","type":"` + kind + `"}`)
	n, err := DecodeNode(raw)
	if err != nil {
		panic(err)
	}
	return n
}

func TestRunner_SeedsExcludesAndContinues(t *testing.T) {
	exec := &stubRunner{
		outputs: map[NodeID]string{"llm1": "count={{seed.leadCount}}", "llm2": "after"},
		fail:    map[NodeID]error{"bad": errors.New("provider down")},
	}
	runs := &mockRuns{}
	runs.On("SaveRun", mock.Anything, mock.AnythingOfType("*model.WorkflowRun")).Return(nil)

	r := NewRunner(exec, runs)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}

	out, err := r.Run(context.Background(), RunSpec{
		Type:    model.WorkflowPrecrafter,
		Version: 4,
		Nodes: []Node{
			node("seed", "BOX1_INPUT"),
			node("input", "LEAD_INPUT"),
			node("llm1", "promptNode"),
			node("bad", "promptNode"),
			node("verify", "ANYMAILFINDER"),
			node("llm2", "promptNode"),
		},
		Seeds:   []Seed{{Node: "seed", Entry: Entry{Output: `{"leads":[],"leadCount":3}`}}},
		Exclude: []Kind{KindLeadInput, KindAnymailfinder},
	})
	require.NoError(t, err)

	assert.Equal(t, []NodeID{"llm1", "bad", "llm2"}, exec.seen)
	require.Len(t, out.Nodes, 3)
	assert.Equal(t, model.NodeSuccess, out.Nodes[0].Status)
	assert.Equal(t, model.NodeError, out.Nodes[1].Status)
	assert.Equal(t, "provider down", out.Nodes[1].Error)
	assert.Equal(t, "promptNode", out.Nodes[1].Type)
	assert.Equal(t, 2, out.Succeeded())

	e, ok := out.Context.Get("llm1")
	require.True(t, ok)
	assert.Equal(t, "count=3", e.Output)
	assert.False(t, out.Context.Has("bad"))

	assert.Equal(t, model.RunStatusCompleted, out.Run.Status)
	assert.Equal(t, 4, out.Run.WorkflowVersion)
	assert.Equal(t, int64(250), out.Run.DurationMs)

	var stored struct {
		Nodes   []model.NodeResult         `json:"nodes"`
		Context map[string]json.RawMessage `json:"context"`
	}
	require.NoError(t, json.Unmarshal(out.Run.Results, &stored))
	assert.Len(t, stored.Nodes, 3)
	assert.Contains(t, stored.Context, "seed")
	assert.Contains(t, stored.Context, "llm2")
	runs.AssertExpectations(t)
}

func TestRunner_CallerStatus(t *testing.T) {
	r := NewRunner(&stubRunner{}, nil)
	out, err := r.Run(context.Background(), RunSpec{
		Type:   model.WorkflowCrafter,
		Nodes:  []Node{node("a", "JSON")},
		Status: model.RunStatusFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, out.Run.Status)
}

func TestRunner_SaveError(t *testing.T) {
	runs := &mockRuns{}
	runs.On("SaveRun", mock.Anything, mock.Anything).Return(errors.New("db down"))

	out, err := NewRunner(&stubRunner{}, runs).Run(context.Background(), RunSpec{Type: model.WorkflowPrecrafter})
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Empty(t, out.Nodes)
}

func TestRunner_DuplicateSeed(t *testing.T) {
	_, err := NewRunner(&stubRunner{}, nil).Run(context.Background(), RunSpec{
		Seeds: []Seed{{Node: "a"}, {Node: "a"}},
	})
	assert.ErrorIs(t, err, ErrContextOverwrite)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(&stubRunner{}, nil).Run(ctx, RunSpec{Nodes: []Node{node("a", "JSON")}})
	assert.ErrorIs(t, err, context.Canceled)
}
