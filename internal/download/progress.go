package download

// percentReporter turns byte counts into whole percentages and only forwards
// values above the highest one reported so far.
type percentReporter struct {
	fn   func(int)
	last int
}

func newPercentReporter(fn func(int)) *percentReporter {
	return &percentReporter{fn: fn, last: -1}
}

func (r *percentReporter) report(percent int) {
	if r.fn == nil {
		return
	}
	percent = max(0, min(percent, 100))
	if percent <= r.last {
		return
	}
	r.last = percent
	r.fn(percent)
}

// track returns a writer for one attempt. Unknown sizes report nothing until
// the download completes. 100 is held back until the file is verified.
func (r *percentReporter) track(total int64) *attemptWriter {
	r.report(0)
	return &attemptWriter{reporter: r, total: total}
}

type attemptWriter struct {
	reporter *percentReporter
	total    int64
	written  int64
}

func (w *attemptWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		w.reporter.report(min(int(w.written*100/w.total), 99))
	}
	return len(p), nil
}
