package interfaces

import "time"

type EodSummarizer interface {
	// SummarizeDay aggregates one UTC day's fills into a CSV summary.
	// A day without trades yields an empty path and no file.
	SummarizeDay(day time.Time) (csvPath string, err error)

	// SummarizeClosedDay summarizes the most recently closed UTC day.
	SummarizeClosedDay() (csvPath string, err error)

	// ShouldRunNow reports whether the closed day still needs its summary,
	// and where it would be written. Polled every cycle, fires once per day.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
