package invoke

// Status describes how a Response was produced.
type Status string

// Response statuses.
const (
	// StatusOK means a provider produced the text.
	StatusOK Status = "ok"

	// StatusFallback means every provider failed and the text was built
	// from the supplied documents without a model.
	StatusFallback Status = "fallback"

	// StatusBusy means every provider failed and no fallback context was
	// supplied, so the text is the fixed busy message.
	StatusBusy Status = "busy"

	// StatusSkipped is used by callers that decided not to invoke at all.
	StatusSkipped Status = "skipped"
)

// Degraded reports whether the text came from somewhere other than a provider.
func (s Status) Degraded() bool {
	return s != StatusOK
}

// BusyMessage is returned when no provider answered and no fallback was possible.
const BusyMessage = "The research service is currently busy. Please try again in a few minutes."

// Response is the result of Invoker.Generate. Text is never empty.
type Response struct {
	Text   string
	Status Status
	// Provider is the provider that produced Text; empty unless Status is StatusOK.
	Provider string
	// Attempts is the total number of provider calls made.
	Attempts int
	// Err joins the failures seen along the way; nil when Status is StatusOK.
	Err error
}
