package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixops/strix/pkg/agent"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "strix.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleState(runID string) agent.RunState {
	return agent.RunState{
		RunID:       runID,
		ActiveAgent: "red_teamer",
		Status:      agent.StatusCompleted,
		TurnCount:   2,
		History: []agent.Message{
			{Role: agent.RoleUser, Content: "scan the target"},
			{
				Role:    agent.RoleAssistant,
				Content: "running nmap",
				ToolCalls: []agent.ToolCall{{
					ID:        "c1",
					Name:      "nmap_scan",
					Arguments: map[string]interface{}{"target": "10.0.0.5"},
				}},
			},
			{Role: agent.RoleTool, Content: "22/tcp open", ToolCallID: "c1"},
			{Role: agent.RoleAssistant, Content: "ssh is exposed"},
		},
	}
}

func TestSaveRun(t *testing.T) {
	t.Run("should round-trip a transcript in order", func(t *testing.T) {
		s := testStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))

		loaded, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)

		assert.Equal(t, agent.StatusCompleted, loaded.Status)
		assert.Equal(t, "red_teamer", loaded.ActiveAgent)
		assert.Equal(t, 2, loaded.TurnCount)
		require.Len(t, loaded.History, 4)
		assert.Equal(t, "scan the target", loaded.History[0].Content)
		assert.Equal(t, "c1", loaded.History[2].ToolCallID)
		require.Len(t, loaded.History[1].ToolCalls, 1)
		assert.Equal(t, "nmap_scan", loaded.History[1].ToolCalls[0].Name)
	})

	t.Run("should replace the transcript on a second save", func(t *testing.T) {
		s := testStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))

		updated := sampleState("run-1")
		updated.History = updated.History[:2]
		updated.Status = agent.StatusFailed
		updated.Err = errors.New("model backend error")
		require.NoError(t, s.SaveRun(ctx, updated))

		loaded, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, agent.StatusFailed, loaded.Status)
		assert.Len(t, loaded.History, 2)
		require.Error(t, loaded.Err)
	})
}

func TestGetRun(t *testing.T) {
	t.Run("should report an unknown run id", func(t *testing.T) {
		s := testStore(t)

		_, err := s.GetRun(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrUnknownRun)
	})
}

func TestListRuns(t *testing.T) {
	t.Run("should list stored runs", func(t *testing.T) {
		s := testStore(t)
		ctx := context.Background()

		require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))
		require.NoError(t, s.SaveRun(ctx, sampleState("run-2")))

		runs, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, r := range runs {
			assert.Equal(t, "red_teamer", r.ActiveAgent)
			assert.Equal(t, string(agent.StatusCompleted), r.Status)
		}
	})
}
