package types

// PresentationContextResult represents the outcome of presentation context
// negotiation. The values are the result/reason codes transmitted in
// A-ASSOCIATE-AC presentation context items (DICOM PS3.8, Table 9-18),
// except ResultProposed which is a local sentinel and never goes on the wire.
type PresentationContextResult byte

const (
	ResultAccept                             PresentationContextResult = 0x00
	ResultRejectUser                         PresentationContextResult = 0x01
	ResultRejectNoReason                     PresentationContextResult = 0x02
	ResultRejectAbstractSyntaxNotSupported   PresentationContextResult = 0x03
	ResultRejectTransferSyntaxesNotSupported PresentationContextResult = 0x04
	ResultProposed                           PresentationContextResult = 0xFF
)

// String returns a human-readable description of the negotiation result.
func (r PresentationContextResult) String() string {
	switch r {
	case ResultProposed:
		return "Proposed"
	case ResultAccept:
		return "Accept"
	case ResultRejectUser:
		return "Reject - User"
	case ResultRejectNoReason:
		return "Reject - No Reason"
	case ResultRejectAbstractSyntaxNotSupported:
		return "Reject - Abstract Syntax Not Supported"
	case ResultRejectTransferSyntaxesNotSupported:
		return "Reject - Transfer Syntaxes Not Supported"
	default:
		return "Unknown"
	}
}

// IsRejected returns true for any of the reject outcomes.
func (r PresentationContextResult) IsRejected() bool {
	return r != ResultProposed && r != ResultAccept
}

// PresentationContext carries one negotiation unit of a DICOM association:
// an abstract syntax (the service being requested) together with the ordered
// list of transfer syntaxes (encodings) the proposer can handle. The context
// id and abstract syntax are fixed at construction; the transfer syntax list
// and result evolve as negotiation progresses.
//
// Context ids are odd numbers between 1 and 255 by protocol convention.
// Callers are expected to honor that; the type itself does not enforce it.
//
// A PresentationContext is not safe for concurrent use. Contexts belong to a
// single association and are driven by the goroutine handling it.
type PresentationContext struct {
	id               byte
	abstractSyntax   string
	transferSyntaxes []string
	result           PresentationContextResult
	userRole         *bool
	providerRole     *bool
}

// PresentationContextOption configures optional attributes of a proposed
// presentation context.
type PresentationContextOption func(*PresentationContext)

// WithUserRole proposes SCP/SCU role selection for the association user.
func WithUserRole(scu bool) PresentationContextOption {
	return func(pc *PresentationContext) {
		v := scu
		pc.userRole = &v
	}
}

// WithProviderRole proposes SCP/SCU role selection for the association provider.
func WithProviderRole(scp bool) PresentationContextOption {
	return func(pc *PresentationContext) {
		v := scp
		pc.providerRole = &v
	}
}

// NewPresentationContext creates a proposed presentation context for the given
// abstract syntax. Transfer syntaxes are added afterwards with AddTransferSyntax,
// in order of preference.
func NewPresentationContext(id byte, abstractSyntax string, opts ...PresentationContextOption) *PresentationContext {
	pc := &PresentationContext{
		id:             id,
		abstractSyntax: abstractSyntax,
		result:         ResultProposed,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

// NewNegotiatedPresentationContext creates a presentation context that already
// carries a negotiation outcome, as when rebuilding association state from a
// received A-ASSOCIATE-AC.
func NewNegotiatedPresentationContext(id byte, abstractSyntax, transferSyntax string, result PresentationContextResult) *PresentationContext {
	pc := &PresentationContext{
		id:             id,
		abstractSyntax: abstractSyntax,
		result:         result,
	}
	if transferSyntax != "" {
		pc.transferSyntaxes = []string{transferSyntax}
	}
	return pc
}

// ID returns the presentation context identifier.
func (pc *PresentationContext) ID() byte {
	return pc.id
}

// AbstractSyntax returns the abstract syntax UID this context was proposed for.
func (pc *PresentationContext) AbstractSyntax() string {
	return pc.abstractSyntax
}

// Result returns the current negotiation outcome.
func (pc *PresentationContext) Result() PresentationContextResult {
	return pc.result
}

// UserRole reports the proposed SCU role of the association user.
// ok is false when no role selection was asserted.
func (pc *PresentationContext) UserRole() (value, ok bool) {
	if pc.userRole == nil {
		return false, false
	}
	return *pc.userRole, true
}

// ProviderRole reports the proposed SCP role of the association provider.
// ok is false when no role selection was asserted.
func (pc *PresentationContext) ProviderRole() (value, ok bool) {
	if pc.providerRole == nil {
		return false, false
	}
	return *pc.providerRole, true
}

// SetUserRole asserts the SCU role proposed for the association user.
func (pc *PresentationContext) SetUserRole(scu bool) {
	v := scu
	pc.userRole = &v
}

// SetProviderRole asserts the SCP role proposed for the association provider.
func (pc *PresentationContext) SetProviderRole(scp bool) {
	v := scp
	pc.providerRole = &v
}

// AddTransferSyntax appends a candidate transfer syntax to the proposal list.
// The list keeps insertion order, which is the order of preference on the wire.
// Empty UIDs and duplicates are ignored.
func (pc *PresentationContext) AddTransferSyntax(uid string) {
	if uid == "" || pc.HasTransferSyntax(uid) {
		return
	}
	pc.transferSyntaxes = append(pc.transferSyntaxes, uid)
}

// RemoveTransferSyntax removes a candidate transfer syntax, preserving the
// relative order of the remaining entries. Removing an absent UID is a no-op.
func (pc *PresentationContext) RemoveTransferSyntax(uid string) {
	for i, ts := range pc.transferSyntaxes {
		if ts == uid {
			pc.transferSyntaxes = append(pc.transferSyntaxes[:i], pc.transferSyntaxes[i+1:]...)
			return
		}
	}
}

// ClearTransferSyntaxes removes all candidate transfer syntaxes.
func (pc *PresentationContext) ClearTransferSyntaxes() {
	pc.transferSyntaxes = nil
}

// HasTransferSyntax returns true if the given UID is in the candidate list.
func (pc *PresentationContext) HasTransferSyntax(uid string) bool {
	for _, ts := range pc.transferSyntaxes {
		if ts == uid {
			return true
		}
	}
	return false
}

// TransferSyntaxes returns a copy of the candidate list in proposal order.
func (pc *PresentationContext) TransferSyntaxes() []string {
	if len(pc.transferSyntaxes) == 0 {
		return nil
	}
	out := make([]string, len(pc.transferSyntaxes))
	copy(out, pc.transferSyntaxes)
	return out
}

// AcceptedTransferSyntax returns the transfer syntax bound to this context,
// which after finalization is the only entry in the list. Returns "" when
// the list is empty.
func (pc *PresentationContext) AcceptedTransferSyntax() string {
	if len(pc.transferSyntaxes) == 0 {
		return ""
	}
	return pc.transferSyntaxes[0]
}

// SetResult records a negotiation outcome. When candidates remain the list
// collapses to its first entry, so a finalized context carries at most one
// transfer syntax. An empty list stays empty.
func (pc *PresentationContext) SetResult(result PresentationContextResult) {
	if len(pc.transferSyntaxes) > 0 {
		pc.SetResultWithTransferSyntax(result, pc.transferSyntaxes[0])
		return
	}
	pc.result = result
}

// SetResultWithTransferSyntax records a negotiation outcome and binds the
// context to the given transfer syntax, replacing the candidate list. An
// empty UID leaves the list empty.
func (pc *PresentationContext) SetResultWithTransferSyntax(result PresentationContextResult, transferSyntax string) {
	pc.result = result
	if transferSyntax == "" {
		pc.transferSyntaxes = nil
		return
	}
	pc.transferSyntaxes = []string{transferSyntax}
}

// AcceptTransferSyntaxes runs the acceptor side of transfer syntax
// negotiation against the given list of syntaxes the acceptor supports.
//
// With scpPriority false the proposal order decides: the first candidate of
// this context that the acceptor supports wins. With scpPriority true the
// acceptor's order decides: the first supported syntax that is also a
// candidate wins. On a match the context is accepted and bound to the
// winning syntax; otherwise it is rejected with
// ResultRejectTransferSyntaxesNotSupported.
//
// A context that is already accepted is left untouched. Returns true when
// the context ends up accepted.
func (pc *PresentationContext) AcceptTransferSyntaxes(accepted []string, scpPriority bool) bool {
	if pc.result == ResultAccept {
		return true
	}

	if scpPriority {
		for _, ts := range accepted {
			if ts == "" {
				continue
			}
			if pc.HasTransferSyntax(ts) {
				pc.SetResultWithTransferSyntax(ResultAccept, ts)
				return true
			}
		}
	} else {
		for _, ts := range pc.transferSyntaxes {
			if contains(accepted, ts) {
				pc.SetResultWithTransferSyntax(ResultAccept, ts)
				return true
			}
		}
	}

	pc.SetResult(ResultRejectTransferSyntaxesNotSupported)
	return false
}

func contains(list []string, uid string) bool {
	for _, v := range list {
		if v == uid {
			return true
		}
	}
	return false
}
