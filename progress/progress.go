// Package progress implements the observer-callback contract named in
// spec.md section 5 for the long-running operations of sections
// 4.9-4.11 (repository add/update, graph add/update, export): a
// percentage, a stage identifier, and a human-readable message, the
// same shape the teacher's coordinator.ProgressPayload carries over its
// WebSocket transport, reduced here to a plain in-process callback
// since this engine has no event loop to publish through. Cancellation
// is carried by context.Context at every suspension point named in
// section 5 rather than a bespoke token type, matching how every other
// component in this module already threads ctx through blocking calls.
package progress

// Update is one progress notification. Percent is in [0, 100]; Stage
// names the pipeline stage the update belongs to (e.g. "parse",
// "widen_stable", "git_intelligence", "change_events"); Message is a
// short human-readable detail.
type Update struct {
	Percent float64
	Stage   string
	Message string
}

// Observer receives progress updates. A nil Observer is always valid to
// call through Reporter.Report; it is simply a no-op.
type Observer func(Update)

// Reporter computes Percent from a known total and emits Updates
// through an Observer, so callers driving a bounded loop (files parsed,
// commits walked, records exported) don't each re-derive the percentage
// arithmetic.
type Reporter struct {
	Stage    string
	Total    int
	observer Observer
	done     int
}

// NewReporter constructs a Reporter for stage, reporting against total
// items. observer may be nil.
func NewReporter(stage string, total int, observer Observer) *Reporter {
	return &Reporter{Stage: stage, Total: total, observer: observer}
}

// Step records one unit of completed work and reports the resulting
// percentage with message.
func (r *Reporter) Step(message string) {
	r.done++
	r.Report(message)
}

// Report emits an Update for the reporter's current progress without
// advancing its counter, for stages that want to report a status change
// (e.g. "starting") before any unit completes.
func (r *Reporter) Report(message string) {
	if r.observer == nil {
		return
	}
	percent := 100.0
	if r.Total > 0 {
		percent = (float64(r.done) / float64(r.Total)) * 100
	}
	r.observer(Update{Percent: percent, Stage: r.Stage, Message: message})
}
