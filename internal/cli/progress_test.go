package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressIndicatorsStopCleanly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start func() stopFunc
	}{
		{name: "spinner", start: func() stopFunc { return startSpinner(true, "testing") }},
		{name: "spinner disabled", start: func() stopFunc { return startSpinner(false, "testing") }},
		{name: "duration", start: func() stopFunc { return startDurationProgress(true, "testing", 5*time.Second) }},
		{name: "duration disabled", start: func() stopFunc { return startDurationProgress(false, "testing", 5*time.Second) }},
		{name: "zero duration", start: func() stopFunc { return startDurationProgress(true, "testing", 0) }},
		{name: "sub-second duration", start: func() stopFunc { return startDurationProgress(true, "testing", 500*time.Millisecond) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stop := tt.start()
			require.NotNil(t, stop)
			stop()
			stop()
		})
	}
}

func TestStartPercentProgressEnabled(t *testing.T) {
	t.Parallel()

	set, stop := startPercentProgress(true, "testing")
	set(30)
	set(10)
	set(150)
	stop()
	stop()
}

func TestStartPercentProgressDisabled(t *testing.T) {
	t.Parallel()

	set, stop := startPercentProgress(false, "testing")
	require.NotNil(t, set)
	set(50)
	stop()
}
