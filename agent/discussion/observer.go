package discussion

import "time"

// Observer receives discussion lifecycle events. Implementations must be
// safe for concurrent use; internal/metrics.Collector is the production one.
type Observer interface {
	ObserveTurn(mode, strategy string)
	ObserveBackendCall(operation string, duration time.Duration, err error)
	ObserveSelectionFallback(mode string)
	ObserveHumanInjection()
	ObserveStateTransition(from, to string)
}

// Backend call operations reported to observers.
const (
	OperationGenerate = "generate"
	OperationJudge    = "judge"
)

type nopObserver struct{}

func (nopObserver) ObserveTurn(string, string)                      {}
func (nopObserver) ObserveBackendCall(string, time.Duration, error) {}
func (nopObserver) ObserveSelectionFallback(string)                 {}
func (nopObserver) ObserveHumanInjection()                          {}
func (nopObserver) ObserveStateTransition(string, string)           {}
