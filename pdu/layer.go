package pdu

import (
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// Default identification sent in user information items.
const (
	DefaultImplementationClassUID = "1.2.826.0.1.3680043.10.1081.1"
	DefaultImplementationVersion  = "FODICOM_GO_1.0"
)

// DIMSEHandler interface for handling DIMSE messages
type DIMSEHandler interface {
	HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer *Layer) error
}

// AcceptorPolicy controls how incoming associations are negotiated.
type AcceptorPolicy struct {
	// AETitle is the AE title this acceptor answers as.
	AETitle string

	// RequireCalledAETitle rejects associations whose called AE title
	// does not match AETitle.
	RequireCalledAETitle bool

	// TransferSyntaxes lists the transfer syntaxes the acceptor supports,
	// most preferred first. Empty means the uncompressed defaults.
	TransferSyntaxes []string

	// SCPPriority selects the acceptor's preference order over the
	// proposer's when both sides support several transfer syntaxes.
	SCPPriority bool

	// AcceptAbstractSyntax decides per SOP class. Nil accepts the
	// verification, storage and query/retrieve classes.
	AcceptAbstractSyntax func(uid string) bool

	// MaxPDULength is announced to the peer. Zero means DefaultMaxPDULength.
	MaxPDULength uint32

	ImplementationClassUID string
	ImplementationVersion  string

	// OnAssociation is invoked once negotiation has finished and the
	// A-ASSOCIATE-AC is on the wire.
	OnAssociation func(assoc *types.AssociationContext)
}

// DefaultAcceptorPolicy returns the policy servers use unless configured
// otherwise.
func DefaultAcceptorPolicy(aeTitle string) AcceptorPolicy {
	return AcceptorPolicy{
		AETitle:                aeTitle,
		TransferSyntaxes:       types.DefaultTransferSyntaxes(),
		MaxPDULength:           types.DefaultMaxPDULength,
		ImplementationClassUID: DefaultImplementationClassUID,
		ImplementationVersion:  DefaultImplementationVersion,
	}
}

func defaultAcceptAbstractSyntax(uid string) bool {
	if uid == types.VerificationSOPClass {
		return true
	}
	return types.IsStorageSOPClass(uid) || types.IsQueryRetrieveSOPClass(uid)
}

// Layer handles the DICOM Upper Layer Protocol for one accepted connection
type Layer struct {
	conn         net.Conn
	dimseHandler DIMSEHandler
	policy       AcceptorPolicy
	assoc        *types.AssociationContext
	logger       zerolog.Logger
}

// NewLayer creates a new PDU layer handler
func NewLayer(conn net.Conn, dimseHandler DIMSEHandler, policy AcceptorPolicy, logger zerolog.Logger) *Layer {
	if policy.MaxPDULength == 0 {
		policy.MaxPDULength = types.DefaultMaxPDULength
	}
	if len(policy.TransferSyntaxes) == 0 {
		policy.TransferSyntaxes = types.DefaultTransferSyntaxes()
	}
	if policy.AcceptAbstractSyntax == nil {
		policy.AcceptAbstractSyntax = defaultAcceptAbstractSyntax
	}
	if policy.ImplementationClassUID == "" {
		policy.ImplementationClassUID = DefaultImplementationClassUID
	}
	if policy.ImplementationVersion == "" {
		policy.ImplementationVersion = DefaultImplementationVersion
	}

	return &Layer{
		conn:         conn,
		dimseHandler: dimseHandler,
		policy:       policy,
		logger:       logger,
	}
}

// Association returns the negotiated association state, nil before the
// handshake completes.
func (p *Layer) Association() *types.AssociationContext {
	return p.assoc
}

// HandleConnection manages the complete DICOM connection lifecycle
func (p *Layer) HandleConnection() error {
	defer p.conn.Close()
	p.logger.Info().Stringer("remote_addr", p.conn.RemoteAddr()).Msg("new DICOM connection")

	if err := p.handleAssociationPhase(); err != nil {
		return fmt.Errorf("association failed: %w", err)
	}

	for {
		pdu, err := ReadPDU(p.conn)
		if err != nil {
			if err == io.EOF {
				p.logger.Info().Msg("connection closed by peer")
			} else {
				p.logger.Warn().Err(err).Msg("error reading PDU")
			}
			break
		}

		if err := p.handlePDU(pdu); err != nil {
			if err == io.EOF {
				break // Normal termination
			}
			return fmt.Errorf("error handling PDU: %w", err)
		}
	}

	return nil
}

// handleAssociationPhase reads the A-ASSOCIATE-RQ, negotiates every
// proposed presentation context against the acceptor policy and answers
// with an A-ASSOCIATE-AC or A-ASSOCIATE-RJ.
func (p *Layer) handleAssociationPhase() error {
	pdu, err := ReadPDU(p.conn)
	if err != nil {
		return fmt.Errorf("failed to read association request: %w", err)
	}

	if pdu.Type != TypeAssociateRQ {
		p.sendAbort(dicomerr.AbortSourceServiceProvider, dicomerr.AbortReasonUnexpectedPDU)
		return dicomerr.NewPDUError(pdu.Type, "expected A-ASSOCIATE-RQ")
	}

	rq, err := ParseAssociateRQ(pdu.Data)
	if err != nil {
		p.sendAbort(dicomerr.AbortSourceServiceProvider, dicomerr.AbortReasonInvalidPDUParamValue)
		return err
	}

	if p.policy.RequireCalledAETitle && rq.CalledAETitle != p.policy.AETitle {
		p.logger.Info().
			Str("called_ae", rq.CalledAETitle).
			Str("expected_ae", p.policy.AETitle).
			Msg("rejecting association for unknown called AE title")
		return p.sendReject(dicomerr.RejectResultPermanent,
			dicomerr.RejectSourceServiceUser,
			dicomerr.RejectReasonCalledAETitleNotRecognized)
	}

	p.assoc = p.negotiate(rq)

	negotiated := make([]*types.PresentationContext, 0, len(p.assoc.PresentationContexts))
	for _, id := range p.assoc.ContextIDs() {
		pc, _ := p.assoc.PresentationContext(id)
		negotiated = append(negotiated, pc)
	}

	// Echo the requester's role selections for SOP classes that ended up
	// with an accepted context.
	var roles []RoleSelection
	for _, rs := range rq.RoleSelections {
		if _, ok := p.assoc.FindAcceptedPresentationContext(rs.SOPClassUID); ok {
			roles = append(roles, rs)
		}
	}

	ac := &AssociateAC{
		CalledAETitle:        rq.CalledAETitle,
		CallingAETitle:       rq.CallingAETitle,
		ApplicationContext:   types.ApplicationContextUID,
		PresentationContexts: negotiated,
		UserInfo: UserInfo{
			MaxPDULength:           p.policy.MaxPDULength,
			ImplementationClassUID: p.policy.ImplementationClassUID,
			ImplementationVersion:  p.policy.ImplementationVersion,
			RoleSelections:         roles,
		},
	}

	if err := WritePDU(p.conn, TypeAssociateAC, ac.Encode()); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-AC: %w", err)
	}

	p.logger.Info().
		Str("association_id", p.assoc.ID).
		Str("calling_ae", rq.CallingAETitle).
		Str("called_ae", rq.CalledAETitle).
		Int("proposed", len(rq.PresentationContexts)).
		Int("accepted", len(p.assoc.AcceptedPresentationContexts())).
		Uint32("max_pdu_length", p.assoc.MaxPDULength).
		Msg("association established")

	if p.policy.OnAssociation != nil {
		p.policy.OnAssociation(p.assoc)
	}

	return nil
}

// negotiate applies the acceptor policy to every proposed context and
// records the outcome in a fresh association context.
func (p *Layer) negotiate(rq *AssociateRQ) *types.AssociationContext {
	assoc := types.NewAssociationContext()
	assoc.ID = uuid.NewString()
	assoc.CalledAETitle = rq.CalledAETitle
	assoc.CallingAETitle = rq.CallingAETitle
	assoc.ImplementationClassUID = rq.ImplementationClassUID
	assoc.ImplementationVersion = rq.ImplementationVersion
	if rq.MaxPDULength > 0 {
		assoc.MaxPDULength = rq.MaxPDULength
	}

	for _, pc := range rq.PresentationContexts {
		if !p.policy.AcceptAbstractSyntax(pc.AbstractSyntax()) {
			pc.SetResult(types.ResultRejectAbstractSyntaxNotSupported)
		} else {
			pc.AcceptTransferSyntaxes(p.policy.TransferSyntaxes, p.policy.SCPPriority)
		}

		// An accepted context must carry a transfer syntax on the wire.
		if pc.Result() == types.ResultAccept && pc.AcceptedTransferSyntax() == "" {
			pc.SetResult(types.ResultRejectTransferSyntaxesNotSupported)
		}

		p.logger.Debug().
			Uint8("context_id", pc.ID()).
			Str("abstract_syntax", pc.AbstractSyntax()).
			Str("transfer_syntax", pc.AcceptedTransferSyntax()).
			Stringer("result", pc.Result()).
			Msg("negotiated presentation context")

		assoc.AddPresentationContext(pc)
	}

	return assoc
}

// handlePDU routes PDUs to appropriate handlers
func (p *Layer) handlePDU(pdu *PDU) error {
	p.logger.Debug().Str("type", TypeName(pdu.Type)).Int("length", len(pdu.Data)).Msg("received PDU")

	switch pdu.Type {
	case TypePDataTF:
		return p.handlePDataTF(pdu)
	case TypeReleaseRQ:
		return p.handleReleaseRequest()
	case TypeReleaseRP:
		p.logger.Debug().Msg("received A-RELEASE-RP")
		return io.EOF
	case TypeAbort:
		source, reason := ParseAbort(pdu.Data)
		p.logger.Info().Uint8("source", source).Uint8("reason", reason).Msg("received A-ABORT")
		return io.EOF
	case TypeAssociateRQ:
		p.sendAbort(dicomerr.AbortSourceServiceProvider, dicomerr.AbortReasonUnexpectedPDU)
		return dicomerr.NewPDUError(pdu.Type, "unexpected A-ASSOCIATE-RQ on established association")
	default:
		p.logger.Warn().Str("type", TypeName(pdu.Type)).Msg("unhandled PDU type")
		return nil
	}
}

// handlePDataTF unpacks every PDV in the PDU and forwards each to the
// DIMSE layer.
func (p *Layer) handlePDataTF(pdu *PDU) error {
	pdvs, err := ParsePDVs(pdu.Data)
	if err != nil {
		return err
	}

	for _, pdv := range pdvs {
		p.logger.Debug().
			Uint8("presentation_context_id", pdv.PresentationContextID).
			Uint8("message_control_header", pdv.ControlHeader).
			Int("length", len(pdv.Data)).
			Msg("received PDV")

		if err := p.dimseHandler.HandleDIMSEMessage(pdv.PresentationContextID, pdv.ControlHeader, pdv.Data, p); err != nil {
			return err
		}
	}

	return nil
}

// handleReleaseRequest processes A-RELEASE-RQ and sends A-RELEASE-RP
func (p *Layer) handleReleaseRequest() error {
	p.logger.Debug().Msg("processing A-RELEASE-RQ")

	if err := WritePDU(p.conn, TypeReleaseRP, EncodeRelease()); err != nil {
		return fmt.Errorf("failed to send A-RELEASE-RP: %w", err)
	}

	p.logger.Debug().Msg("sent A-RELEASE-RP")
	return io.EOF
}

func (p *Layer) sendReject(result dicomerr.AssociationRejectResult, source dicomerr.AssociationRejectSource, reason dicomerr.AssociationRejectReason) error {
	rj := &AssociateRJ{Result: result, Source: source, Reason: reason}
	if err := WritePDU(p.conn, TypeAssociateRJ, rj.Encode()); err != nil {
		return fmt.Errorf("failed to send A-ASSOCIATE-RJ: %w", err)
	}
	return rj.Err()
}

func (p *Layer) sendAbort(source, reason byte) {
	if err := WritePDU(p.conn, TypeAbort, EncodeAbort(source, reason)); err != nil {
		p.logger.Warn().Err(err).Msg("failed to send A-ABORT")
	}
}

// SendDIMSEResponse sends a DIMSE command set via P-DATA-TF
func (p *Layer) SendDIMSEResponse(presContextID byte, commandData []byte) error {
	return p.SendDIMSEResponseWithDataset(presContextID, commandData, nil)
}

// SendDIMSEResponseWithDataset sends a DIMSE command set followed by an
// optional dataset, fragmenting both to the peer's maximum PDU length.
func (p *Layer) SendDIMSEResponseWithDataset(presContextID byte, commandData, datasetData []byte) error {
	if err := p.sendPData(presContextID, true, commandData); err != nil {
		return fmt.Errorf("failed to send command PDU: %w", err)
	}

	if len(datasetData) > 0 {
		if err := p.sendPData(presContextID, false, datasetData); err != nil {
			return fmt.Errorf("failed to send dataset PDU: %w", err)
		}
	}

	return nil
}

// sendPData fragments data to the peer's announced maximum PDU length.
func (p *Layer) sendPData(presContextID byte, isCommand bool, data []byte) error {
	var maxPDU uint32
	if p.assoc != nil {
		maxPDU = p.assoc.MaxPDULength
	}
	return WritePData(p.conn, presContextID, isCommand, maxPDU, data)
}

// GetTransferSyntax returns the negotiated transfer syntax for the given
// presentation context.
func (p *Layer) GetTransferSyntax(presContextID byte) (string, error) {
	if p.assoc == nil {
		return "", dicomerr.ErrNoPresentationCtx
	}

	pc, ok := p.assoc.PresentationContext(presContextID)
	if !ok {
		return "", fmt.Errorf("presentation context %d not found: %w", presContextID, dicomerr.ErrNoPresentationCtx)
	}

	if pc.Result() != types.ResultAccept || pc.AcceptedTransferSyntax() == "" {
		return "", fmt.Errorf("presentation context %d not accepted: %w", presContextID, dicomerr.ErrNoPresentationCtx)
	}

	return pc.AcceptedTransferSyntax(), nil
}
