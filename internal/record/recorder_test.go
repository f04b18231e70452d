package record

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxnote/internal/audio"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) sink(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) fragments() int {
	count := 0
	for _, event := range l.snapshot() {
		if _, ok := event.(FragmentReceived); ok {
			count++
		}
	}
	return count
}

func (l *eventLog) stopped() (Stopped, bool) {
	for _, event := range l.snapshot() {
		if stopped, ok := event.(Stopped); ok {
			return stopped, true
		}
	}
	return Stopped{}, false
}

func newTestRecorder(t *testing.T) (*Recorder, *FakeSource, *FakeClock) {
	t.Helper()
	source := &FakeSource{}
	clock := NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	recorder := NewRecorder(RecorderConfig{Source: source, OutputDir: t.TempDir(), Clock: clock})
	return recorder, source, clock
}

func TestRecorderBuffersFragmentsAndEncodesWAV(t *testing.T) {
	t.Parallel()

	recorder, source, _ := newTestRecorder(t)
	log := &eventLog{}
	require.NoError(t, recorder.Start(context.Background(), log.sink))
	require.True(t, recorder.Active())

	stream := source.Last()
	require.True(t, stream.Push(make([]byte, 3200)))
	require.True(t, stream.Push(make([]byte, 3200)))
	require.Eventually(t, func() bool { return log.fragments() == 2 }, time.Second, 5*time.Millisecond)

	encoded, err := recorder.Stop()
	require.NoError(t, err)
	require.False(t, recorder.Active())
	require.True(t, stream.Released())
	require.Equal(t, 2, encoded.Fragments)
	require.Len(t, encoded.PCM, 6400)
	require.Equal(t, 200*time.Millisecond, encoded.Duration)
	require.Contains(t, encoded.Path, "recording-20260102-030405-")

	metrics, err := audio.AnalyzeWAV(encoded.Path)
	require.NoError(t, err)
	require.EqualValues(t, 3200, metrics.Samples)
}

func TestRecorderStartTwiceFails(t *testing.T) {
	t.Parallel()

	recorder, source, _ := newTestRecorder(t)
	require.NoError(t, recorder.Start(context.Background(), func(Event) {}))

	err := recorder.Start(context.Background(), func(Event) {})
	require.ErrorIs(t, err, ErrAlreadyRecording)
	require.Equal(t, 1, source.Opened())

	_, err = recorder.Stop()
	require.NoError(t, err)
}

func TestRecorderStartWithoutDevice(t *testing.T) {
	t.Parallel()

	recorder, source, _ := newTestRecorder(t)
	source.SetErr(errors.New("permission denied"))

	err := recorder.Start(context.Background(), func(Event) {})
	require.ErrorIs(t, err, ErrCaptureUnavailable)
	require.ErrorContains(t, err, "permission denied")
	require.False(t, recorder.Active())

	_, err = recorder.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderCeilingHaltsCapture(t *testing.T) {
	t.Parallel()

	recorder, source, clock := newTestRecorder(t)
	log := &eventLog{}
	require.NoError(t, recorder.Start(context.Background(), log.sink))

	stream := source.Last()
	require.True(t, stream.Push(make([]byte, 320)))
	require.Eventually(t, func() bool { return log.fragments() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(MaxDuration - time.Second)
	_, halted := log.stopped()
	require.False(t, halted)

	clock.Advance(time.Second)
	stopped, halted := log.stopped()
	require.True(t, halted)
	require.Equal(t, StopCeiling, stopped.Reason)
	require.NoError(t, stopped.Err)
	require.True(t, stream.Released())
	require.False(t, stream.Push(make([]byte, 320)))

	encoded, err := recorder.Stop()
	require.NoError(t, err)
	require.Equal(t, 1, encoded.Fragments)
}

func TestRecorderStreamEndReportsError(t *testing.T) {
	t.Parallel()

	recorder, source, clock := newTestRecorder(t)
	log := &eventLog{}
	require.NoError(t, recorder.Start(context.Background(), log.sink))

	source.Last().End(errors.New("device unplugged"))
	require.Eventually(t, func() bool {
		_, ok := log.stopped()
		return ok
	}, time.Second, 5*time.Millisecond)

	stopped, _ := log.stopped()
	require.Equal(t, StopStreamEnded, stopped.Reason)
	require.ErrorContains(t, stopped.Err, "device unplugged")
	require.Zero(t, clock.Pending())

	encoded, err := recorder.Stop()
	require.NoError(t, err)
	require.Zero(t, encoded.Fragments)
	_, statErr := os.Stat(encoded.Path)
	require.NoError(t, statErr)
}

func TestRecorderStopDisarmsCeiling(t *testing.T) {
	t.Parallel()

	recorder, _, clock := newTestRecorder(t)
	log := &eventLog{}
	require.NoError(t, recorder.Start(context.Background(), log.sink))
	require.Equal(t, 1, clock.Pending())

	_, err := recorder.Stop()
	require.NoError(t, err)
	require.Zero(t, clock.Pending())

	clock.Advance(2 * MaxDuration)
	_, halted := log.stopped()
	require.False(t, halted)
}

func TestRecorderRestartUsesFreshBuffer(t *testing.T) {
	t.Parallel()

	recorder, source, _ := newTestRecorder(t)
	log := &eventLog{}
	require.NoError(t, recorder.Start(context.Background(), log.sink))
	require.True(t, source.Last().Push(make([]byte, 640)))
	require.Eventually(t, func() bool { return log.fragments() == 1 }, time.Second, 5*time.Millisecond)
	_, err := recorder.Stop()
	require.NoError(t, err)

	require.NoError(t, recorder.Start(context.Background(), func(Event) {}))
	encoded, err := recorder.Stop()
	require.NoError(t, err)
	require.Zero(t, encoded.Fragments)
	require.Empty(t, encoded.PCM)
}
