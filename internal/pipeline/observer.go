package pipeline

import "time"

// Observer receives stage outcomes (metrics). All methods must be safe for concurrent use.
type Observer interface {
	ObserveText(method string, pages int, d time.Duration)
	ObserveFields(strategy, outcome string, found int)
	ObserveUpload(bytes int64)
}

// Outcomes reported to Observer.ObserveFields.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

type nopObserver struct{}

func (nopObserver) ObserveText(string, int, time.Duration) {}
func (nopObserver) ObserveFields(string, string, int)      {}
func (nopObserver) ObserveUpload(int64)                    {}
