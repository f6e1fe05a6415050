// Package types holds the per-call envelope shared by the payment core and
// every connector adapter.
package types

// Flow is a compile-time tag naming a stage of the payment lifecycle. The tag
// selects which request and response payloads are legal for a RouterData and
// which adapter specialization handles it.
type Flow interface {
	FlowName() string
}

type (
	Authorize    struct{}
	Capture      struct{}
	Void         struct{}
	PSync        struct{}
	Session      struct{}
	PreAuthorize struct{}
	CardTokenize struct{}
	Execute      struct{}
	RSync        struct{}
)

func (Authorize) FlowName() string    { return "Authorize" }
func (Capture) FlowName() string      { return "Capture" }
func (Void) FlowName() string         { return "Void" }
func (PSync) FlowName() string        { return "PSync" }
func (Session) FlowName() string      { return "Session" }
func (PreAuthorize) FlowName() string { return "PreAuthorize" }
func (CardTokenize) FlowName() string { return "CardTokenize" }
func (Execute) FlowName() string      { return "Execute" }
func (RSync) FlowName() string        { return "RSync" }

// FlowName returns the name of the flow tag F.
func FlowName[F Flow]() string {
	var f F
	return f.FlowName()
}
