package planning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

func TestFindSlotEmptySchedule(t *testing.T) {
	got, err := FindSlot(nil, 60, at(9, 0), DefaultSlotOptions())
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), got.Start)
	assert.Equal(t, at(10, 0), got.End)
}

func TestFindSlotAfterBusyBlock(t *testing.T) {
	existing := []tasks.Task{task("a", "Deep work", at(9, 0), at(11, 0))}
	got, err := FindSlot(existing, 30, at(9, 0), DefaultSlotOptions())
	require.NoError(t, err)
	assert.Equal(t, at(11, 0), got.Start)
	assert.Equal(t, at(11, 30), got.End)
}

func TestFindSlotSkipsGapsThatAreTooSmall(t *testing.T) {
	existing := []tasks.Task{
		task("a", "A", at(9, 0), at(10, 0)),
		task("b", "B", at(10, 20), at(12, 0)),
	}
	got, err := FindSlot(existing, 30, at(9, 0), DefaultSlotOptions())
	require.NoError(t, err)
	assert.Equal(t, at(12, 0), got.Start)
}

func TestFindSlotUsesGapBetweenTasks(t *testing.T) {
	existing := []tasks.Task{
		task("b", "B", at(11, 0), at(12, 0)),
		task("a", "A", at(9, 0), at(10, 0)),
	}
	got, err := FindSlot(existing, 60, at(9, 0), DefaultSlotOptions())
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), got.Start)
}

func TestFindSlotRespectsDayWindow(t *testing.T) {
	opts := DefaultSlotOptions()

	got, err := FindSlot(nil, 60, at(6, 0), opts)
	require.NoError(t, err)
	assert.Equal(t, at(8, 0), got.Start)

	got, err = FindSlot(nil, 60, at(21, 0), opts)
	require.NoError(t, err)
	assert.Equal(t, at(21, 0), got.Start, "a task may end exactly at the latest hour")

	got, err = FindSlot(nil, 60, at(21, 30), opts)
	require.NoError(t, err)
	assert.Equal(t, at(8, 0).AddDate(0, 0, 1), got.Start)
}

func TestFindSlotHorizonExhausted(t *testing.T) {
	opts := DefaultSlotOptions()
	opts.Horizon = 2 * time.Hour
	existing := []tasks.Task{task("a", "A", at(9, 0), at(12, 0))}

	_, err := FindSlot(existing, 30, at(9, 0), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSlotAvailable))

	var noSlot *NoSlotAvailableError
	require.True(t, errors.As(err, &noSlot))
	assert.Equal(t, 30*time.Minute, noSlot.Duration)
	assert.Equal(t, 2*time.Hour, noSlot.Horizon)
}

func TestFindSlotLongerThanDayWindowFails(t *testing.T) {
	_, err := FindSlot(nil, 15*60, at(9, 0), DefaultSlotOptions())
	assert.ErrorIs(t, err, ErrNoSlotAvailable)
}

func TestFindSlotHugeDurations(t *testing.T) {
	_, err := FindSlot(nil, 20000, at(9, 0), DefaultSlotOptions())
	var noSlot *NoSlotAvailableError
	require.ErrorAs(t, err, &noSlot)
	assert.Equal(t, 20000*time.Minute, noSlot.Duration)

	// Would wrap around to a few seconds if multiplied blindly.
	_, err = FindSlot(nil, 307445735, at(9, 0), DefaultSlotOptions())
	assert.ErrorIs(t, err, tasks.ErrInvalidTask)
	assert.NotErrorIs(t, err, ErrNoSlotAvailable)
}

func TestFindSlotRejectsNonPositiveDuration(t *testing.T) {
	for _, d := range []int{0, -30} {
		_, err := FindSlot(nil, d, at(9, 0), DefaultSlotOptions())
		assert.ErrorIs(t, err, tasks.ErrInvalidTask)
	}
}

func TestFindSlotRejectsBadOptions(t *testing.T) {
	bad := []SlotOptions{
		{EarliestHour: 22, LatestHour: 8, Horizon: time.Hour},
		{EarliestHour: -1, LatestHour: 8, Horizon: time.Hour},
		{EarliestHour: 8, LatestHour: 25, Horizon: time.Hour},
		{EarliestHour: 8, LatestHour: 22},
	}
	for _, opts := range bad {
		_, err := FindSlot(nil, 30, at(9, 0), opts)
		assert.Error(t, err, "options %+v", opts)
	}
}

func TestFindSlotNeverOverlapsExisting(t *testing.T) {
	existing := []tasks.Task{
		task("a", "A", at(8, 0), at(9, 15)),
		task("b", "B", at(9, 30), at(10, 0)),
		task("c", "C", at(9, 45), at(11, 0)),
		task("d", "D", at(11, 40), at(13, 0)),
		task("e", "E", at(13, 10), at(21, 50)),
	}
	for _, minutes := range []int{10, 15, 30, 40, 45, 90, 240} {
		got, err := FindSlot(existing, minutes, at(8, 0), DefaultSlotOptions())
		require.NoError(t, err, "duration %d", minutes)

		candidate := task("new", "New", got.Start, got.End)
		hypothetical := append(append([]tasks.Task(nil), existing...), candidate)
		for _, c := range DetectConflicts(hypothetical) {
			assert.NotEqual(t, "new", c.TaskAID, "duration %d: %s", minutes, c.Message)
			assert.NotEqual(t, "new", c.TaskBID, "duration %d: %s", minutes, c.Message)
		}
		assert.Equal(t, time.Duration(minutes)*time.Minute, got.End.Sub(got.Start))
	}
}

func TestFindSlotZeroStartUsesNow(t *testing.T) {
	opts := SlotOptions{EarliestHour: 0, LatestHour: 24, Horizon: 48 * time.Hour, Granularity: 15 * time.Minute}
	before := time.Now()

	got, err := FindSlot(nil, 30, time.Time{}, opts)
	require.NoError(t, err)
	assert.False(t, got.Start.Before(before))
	assert.Less(t, got.Start.Sub(before), 24*time.Hour)
	assert.Zero(t, got.Start.Sub(got.Start.Truncate(15*time.Minute)))
}

func TestCeilTo(t *testing.T) {
	assert.Equal(t, at(9, 15), CeilTo(at(9, 7), 15*time.Minute))
	assert.Equal(t, at(9, 15), CeilTo(at(9, 15), 15*time.Minute))
	assert.Equal(t, at(9, 7), CeilTo(at(9, 7), 0))
}
