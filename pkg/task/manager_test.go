package task

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(id string) Task {
	return Task{
		ID:          id,
		Kind:        KindVideo,
		Mode:        ModeDeep,
		Priority:    PriorityNormal,
		SourceID:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		DocHash:     "8b2f5f0c",
		VideoURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		SubmittedAt: time.Now(),
	}
}

// recvEvent reads one event off a subscription channel and decodes it.
func recvEvent(t *testing.T, ch <-chan []byte) map[string]any {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestCreateStartsQueued(t *testing.T) {
	m := NewManager(64)

	st, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, st.Status)
	assert.Equal(t, 0, st.Progress)
	assert.Equal(t, "8b2f5f0c", st.DocHash)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	m := NewManager(64)

	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	_, err = m.Create(newTestTask("t1"))
	require.Error(t, err)
}

func TestProgressIsMonotone(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	m.UpdateProgress("t1", 40, "chapters", "halfway")
	m.UpdateProgress("t1", 25, "chapters", "late echo")

	st, err := m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, 40, st.Progress, "progress must never decrease")
	assert.Equal(t, "late echo", st.Message, "message still updates")
}

func TestProgressNeverReaches100BeforeCompletion(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	m.UpdateProgress("t1", 100, "postprocessing", "almost there")

	st, err := m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, 99, st.Progress)

	m.SendResult("t1", Result{DocHash: "8b2f5f0c", File: "x_v1.md", Title: "x", Version: 1})

	st, err = m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	require.NotNil(t, st.Result)
	assert.Equal(t, "x_v1.md", st.Result.File)
}

func TestWritesAfterTerminalAreIgnored(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	m.SetError("t1", NewError(ErrKindTimeout, "task exceeded deadline"))

	// A racing result after the timeout must not resurrect the task.
	m.SendResult("t1", Result{File: "late_v1.md"})
	m.UpdateProgress("t1", 90, "assembly", "late progress")

	st, err := m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
	assert.Nil(t, st.Result)
	require.NotNil(t, st.Error)
	assert.Equal(t, ErrKindTimeout, st.Error.Kind)
}

func TestSubscribeReplaysFullHistory(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))
	m.SendLog("t1", "info", "first")
	m.SendLog("t1", "info", "second")

	// Late subscriber: history must arrive before anything live.
	sub, err := m.Subscribe("t1")
	require.NoError(t, err)
	defer m.Unsubscribe(sub)

	m.SendLog("t1", "info", "third")

	var messages []string
	for i := 0; i < 5; i++ {
		ev := recvEvent(t, sub.C)
		if ev["type"] == EventTypeLog {
			messages = append(messages, ev["message"].(string))
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, messages)
}

func TestSubscribeAfterTerminalDeliversHistoryThenCloses(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))
	m.SendResult("t1", Result{DocHash: "8b2f5f0c", File: "x_v1.md", Title: "x", Version: 1})

	sub, err := m.Subscribe("t1")
	require.NoError(t, err)

	var sawResult bool
	for {
		data, ok := <-sub.C
		if !ok {
			break
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev["type"] == EventTypeResult {
			sawResult = true
		}
	}
	assert.True(t, sawResult, "replay must include the terminal result event")
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	m := NewManager(8)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	sub, err := m.Subscribe("t1")
	require.NoError(t, err)

	// Never read: overflow the buffer until the manager evicts us.
	for i := 0; i < subscriberBuffer+16; i++ {
		m.SendLog("t1", "info", fmt.Sprintf("line %d", i))
	}

	// Drain: the channel must be closed rather than blocking the manager.
	closed := false
	deadline := time.After(2 * time.Second)
	for !closed {
		select {
		case _, ok := <-sub.C:
			if !ok {
				closed = true
			}
		case <-deadline:
			t.Fatal("subscriber channel was never closed")
		}
	}
}

func TestConfirmationRoundTrip(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	profile := &Profile{ContentType: "技术讲座", Audience: "工程师", Style: "严谨学术"}
	require.NoError(t, m.PreAnalysisReady("t1", profile))

	st, err := m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConfirmation, st.Status)

	ch, err := m.ConfirmChan("t1")
	require.NoError(t, err)

	require.NoError(t, m.Confirm("t1", map[string]any{
		"style": "轻松科普",
		"notes": "多举例子",
	}))

	select {
	case confirmed := <-ch:
		require.NotNil(t, confirmed)
		assert.Equal(t, "技术讲座", confirmed.ContentType, "unmentioned fields survive the merge")
		assert.Equal(t, "轻松科普", confirmed.Style)
		assert.Equal(t, "多举例子", confirmed.Notes)
	case <-time.After(time.Second):
		t.Fatal("confirmation never reached the waiter")
	}

	st, err = m.Snapshot("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, st.Status)
}

func TestConfirmWithoutPendingGateFails(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)

	err = m.Confirm("t1", nil)
	assert.ErrorIs(t, err, ErrNotAwaitingConfirmation)

	err = m.Confirm("missing", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestFailureUnblocksConfirmationWaiter(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))
	require.NoError(t, m.PreAnalysisReady("t1", &Profile{}))

	ch, err := m.ConfirmChan("t1")
	require.NoError(t, err)

	m.SetError("t1", NewError(ErrKindTimeout, "deadline"))

	select {
	case p, ok := <-ch:
		assert.False(t, ok, "channel should close without a profile, got %v", p)
	case <-time.After(time.Second):
		t.Fatal("waiter was never unblocked")
	}
}

func TestDropOnlyRemovesQueuedTasks(t *testing.T) {
	m := NewManager(64)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)

	require.NoError(t, m.Drop("t1"))
	_, err = m.Snapshot("t1")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = m.Create(newTestTask("t2"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t2"))
	assert.Error(t, m.Drop("t2"), "processing tasks cannot be dropped")
}

func TestHistoryIsBounded(t *testing.T) {
	m := NewManager(4)
	_, err := m.Create(newTestTask("t1"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("t1"))

	for i := 0; i < 20; i++ {
		m.SendLog("t1", "info", fmt.Sprintf("line %d", i))
	}

	sub, err := m.Subscribe("t1")
	require.NoError(t, err)
	defer m.Unsubscribe(sub)

	// Exactly historyLimit events are replayable.
	count := 0
	for {
		select {
		case <-sub.C:
			count++
		default:
			assert.Equal(t, 4, count)
			return
		}
	}
}

func TestPruneTerminalKeepsActiveTasks(t *testing.T) {
	m := NewManager(64)

	_, err := m.Create(newTestTask("done"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("done"))
	m.SendResult("done", Result{File: "a_v1.md"})

	_, err = m.Create(newTestTask("running"))
	require.NoError(t, err)
	require.NoError(t, m.Begin("running"))

	// Zero retention: anything terminal is immediately stale.
	removed := m.PruneTerminal(0)
	assert.Equal(t, 1, removed)

	_, err = m.Snapshot("done")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = m.Snapshot("running")
	assert.NoError(t, err)
}

func TestListNewestFirst(t *testing.T) {
	m := NewManager(64)
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Create(newTestTask(id))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].TaskID)
	assert.Equal(t, "a", list[2].TaskID)
}
