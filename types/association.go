package types

import "sort"

// DefaultMaxPDULength is the maximum PDU size announced when a peer or a
// configuration does not specify one.
const DefaultMaxPDULength uint32 = 16384

// AssociationContext holds the negotiated state of one DICOM association:
// the two AE titles, the peer limits announced in user information, and the
// presentation contexts keyed by context id. ID correlates log lines and
// metrics across the layers handling the same association.
type AssociationContext struct {
	ID                     string
	CalledAETitle          string
	CallingAETitle         string
	MaxPDULength           uint32
	ImplementationClassUID string
	ImplementationVersion  string
	PresentationContexts   map[byte]*PresentationContext
}

// NewAssociationContext creates an empty association context with default limits.
func NewAssociationContext() *AssociationContext {
	return &AssociationContext{
		MaxPDULength:         DefaultMaxPDULength,
		PresentationContexts: make(map[byte]*PresentationContext),
	}
}

// AddPresentationContext registers pc under its context id. A context with
// the same id replaces the previous one.
func (ac *AssociationContext) AddPresentationContext(pc *PresentationContext) {
	if pc == nil {
		return
	}
	if ac.PresentationContexts == nil {
		ac.PresentationContexts = make(map[byte]*PresentationContext)
	}
	ac.PresentationContexts[pc.ID()] = pc
}

// PresentationContext returns the context registered under the given id.
func (ac *AssociationContext) PresentationContext(id byte) (*PresentationContext, bool) {
	pc, ok := ac.PresentationContexts[id]
	return pc, ok
}

// ContextIDs returns all registered context ids in ascending order, which is
// the order contexts are laid out in association PDUs.
func (ac *AssociationContext) ContextIDs() []byte {
	ids := make([]byte, 0, len(ac.PresentationContexts))
	for id := range ac.PresentationContexts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AcceptedPresentationContexts returns the accepted contexts in id order.
func (ac *AssociationContext) AcceptedPresentationContexts() []*PresentationContext {
	var out []*PresentationContext
	for _, id := range ac.ContextIDs() {
		if pc := ac.PresentationContexts[id]; pc.Result() == ResultAccept {
			out = append(out, pc)
		}
	}
	return out
}

// FindAcceptedPresentationContext returns the accepted context with the lowest
// id that was proposed for the given abstract syntax.
func (ac *AssociationContext) FindAcceptedPresentationContext(abstractSyntax string) (*PresentationContext, bool) {
	for _, id := range ac.ContextIDs() {
		pc := ac.PresentationContexts[id]
		if pc.AbstractSyntax() == abstractSyntax && pc.Result() == ResultAccept {
			return pc, true
		}
	}
	return nil, false
}
