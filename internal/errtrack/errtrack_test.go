package errtrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/span"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func rec(line int, msg string) Record {
	return Record{Range: span.New(line, 0, line, 1), Message: msg}
}

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()
	tr := New(1500 * time.Millisecond)
	assert.Equal(t, Clean, tr.State())

	assert.Equal(t, Unchanged, tr.Fail(rec(3, "unexpected"), t0))
	assert.Equal(t, Pending, tr.State())

	deadline, ok := tr.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(1500*time.Millisecond), deadline)

	assert.Equal(t, Unchanged, tr.Tick(t0.Add(time.Second)))
	assert.Equal(t, Show, tr.Tick(deadline))
	assert.Equal(t, Visible, tr.State())
	assert.Equal(t, Unchanged, tr.Tick(deadline.Add(time.Second)))

	_, ok = tr.Deadline()
	assert.False(t, ok)

	assert.Equal(t, Hide, tr.Succeed())
	assert.Equal(t, Clean, tr.State())
	_, ok = tr.Current()
	assert.False(t, ok)
}

func TestTracker_SameRangeKeepsClock(t *testing.T) {
	t.Parallel()
	tr := New(time.Second)
	tr.Fail(rec(3, "first"), t0)
	tr.Fail(rec(3, "second"), t0.Add(800*time.Millisecond))

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, "second", cur.Message)
	assert.Equal(t, t0, cur.RaisedAt)

	// Still due at the first failure's deadline.
	assert.Equal(t, Show, tr.Tick(t0.Add(time.Second)))
}

func TestTracker_NewRangeRestartsClock(t *testing.T) {
	t.Parallel()
	tr := New(time.Second)
	tr.Fail(rec(3, "first"), t0)
	tr.Fail(rec(4, "moved"), t0.Add(800*time.Millisecond))

	assert.Equal(t, Unchanged, tr.Tick(t0.Add(time.Second)))
	assert.Equal(t, Show, tr.Tick(t0.Add(1800*time.Millisecond)))

	// A visible error that moves is hidden until its own delay elapses.
	assert.Equal(t, Hide, tr.Fail(rec(9, "again"), t0.Add(2*time.Second)))
	assert.Equal(t, Pending, tr.State())
}

func TestTracker_VisibleMessageUpdate(t *testing.T) {
	t.Parallel()
	tr := New(0)
	assert.Equal(t, Show, tr.Fail(rec(1, "a"), t0), "zero delay shows at once")
	assert.Equal(t, Unchanged, tr.Fail(rec(1, "a"), t0.Add(time.Second)))
	assert.Equal(t, Show, tr.Fail(rec(1, "b"), t0.Add(2*time.Second)))
	assert.Equal(t, Visible, tr.State())
}

func TestTracker_SucceedWhilePending(t *testing.T) {
	t.Parallel()
	tr := New(time.Minute)
	tr.Fail(rec(1, "a"), t0)
	assert.Equal(t, Unchanged, tr.Succeed())
	assert.Equal(t, Unchanged, tr.Tick(t0.Add(time.Hour)))
	assert.Equal(t, Clean, tr.State())
}
