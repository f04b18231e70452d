package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func noop() {}

// startSpinner animates an indeterminate bar until stopped.
func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return noop
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return tickBar(bar, 120*time.Millisecond)
}

// startDurationProgress counts seconds up to limit, e.g. the recording
// ceiling.
func startDurationProgress(enabled bool, description string, limit time.Duration) stopFunc {
	if !enabled || limit <= 0 {
		return noop
	}

	bar := progressbar.NewOptions64(
		max(int64(limit/time.Second), 1),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return tickBar(bar, time.Second)
}

// tickBar advances bar once per interval. The returned func finishes the bar
// and is safe to call more than once.
func tickBar(bar *progressbar.ProgressBar, interval time.Duration) stopFunc {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}

// startPercentProgress renders a 0-100 bar fed by the returned setter.
// Values below the current position are ignored.
func startPercentProgress(enabled bool, description string) (func(percent int), stopFunc) {
	if !enabled {
		return func(int) {}, noop
	}

	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var mu sync.Mutex
	current := 0
	set := func(percent int) {
		mu.Lock()
		defer mu.Unlock()
		percent = min(max(percent, 0), 100)
		if percent <= current {
			return
		}
		current = percent
		_ = bar.Set(percent)
	}

	var once sync.Once
	return set, func() {
		once.Do(func() {
			mu.Lock()
			defer mu.Unlock()
			_ = bar.Finish()
		})
	}
}
