// Package client implements the SCU side of DICOM associations: connecting,
// proposing presentation contexts and exchanging DIMSE messages with a
// remote SCP.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/dimse"
	"github.com/kimsuk/fo-dicom/pdu"
	"github.com/kimsuk/fo-dicom/types"
)

// Config holds client configuration.
type Config struct {
	CallingAETitle string
	CalledAETitle  string

	// MaxPDULength is announced to the peer. Zero means
	// types.DefaultMaxPDULength.
	MaxPDULength uint32

	ConnectTimeout time.Duration // timeout for establishing the connection (default 30s)
	ReadTimeout    time.Duration // deadline applied per read operation (default 60s)
	WriteTimeout   time.Duration // deadline applied per write operation (default 60s)

	Logger zerolog.Logger

	// AbstractSyntaxes lists the SOP classes to propose, one presentation
	// context each with odd ids assigned in order. Empty proposes the
	// verification, common storage and study root find classes.
	AbstractSyntaxes []string

	// PreferredTransferSyntaxes are proposed for every context, most
	// preferred first. Empty means Explicit then Implicit VR Little Endian.
	PreferredTransferSyntaxes []string

	// PresentationContexts proposes fully built contexts instead of
	// deriving them from AbstractSyntaxes, for callers that need role
	// selection or per context transfer syntaxes. Context ids must be odd
	// and unique.
	PresentationContexts []*types.PresentationContext
}

func (c *Config) applyDefaults() {
	if c.MaxPDULength == 0 {
		c.MaxPDULength = types.DefaultMaxPDULength
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if len(c.PreferredTransferSyntaxes) == 0 {
		c.PreferredTransferSyntaxes = []string{
			types.ExplicitVRLittleEndian,
			types.ImplicitVRLittleEndian,
		}
	}
	if len(c.AbstractSyntaxes) == 0 {
		c.AbstractSyntaxes = []string{
			types.CTImageStorage,
			types.MRImageStorage,
			types.SecondaryCaptureImageStorage,
			types.VerificationSOPClass,
			types.StudyRootQueryRetrieveInformationModelFind,
		}
	}
}

// Association represents a client side DICOM association.
type Association struct {
	conn   net.Conn
	config Config
	assoc  *types.AssociationContext
	logger zerolog.Logger
}

// Connect establishes a DICOM association with a remote SCP.
func Connect(address string, config Config) (*Association, error) {
	config.applyDefaults()

	dialer := &net.Dialer{Timeout: config.ConnectTimeout}
	conn, err := dialer.Dial("tcp", address)
	if err != nil {
		return nil, dicomerr.NewNetworkError("connect "+address, err)
	}

	assoc, err := NewAssociation(conn, config)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return assoc, nil
}

// NewAssociation negotiates a DICOM association over an established
// connection. The connection is not closed on failure; that stays with the
// caller.
func NewAssociation(conn net.Conn, config Config) (*Association, error) {
	config.applyDefaults()

	a := &Association{
		conn:   conn,
		config: config,
		logger: config.Logger,
	}

	contexts := a.proposedContexts()

	rq := &pdu.AssociateRQ{
		CalledAETitle:        config.CalledAETitle,
		CallingAETitle:       config.CallingAETitle,
		ApplicationContext:   types.ApplicationContextUID,
		PresentationContexts: contexts,
		UserInfo: pdu.UserInfo{
			MaxPDULength:           config.MaxPDULength,
			ImplementationClassUID: pdu.DefaultImplementationClassUID,
			ImplementationVersion:  pdu.DefaultImplementationVersion,
			RoleSelections:         pdu.RoleSelectionsFromContexts(contexts),
		},
	}

	if err := a.writePDU(pdu.TypeAssociateRQ, rq.Encode()); err != nil {
		return nil, fmt.Errorf("failed to send A-ASSOCIATE-RQ: %w", err)
	}

	reply, err := a.readPDU()
	if err != nil {
		return nil, fmt.Errorf("failed to read association reply: %w", err)
	}

	switch reply.Type {
	case pdu.TypeAssociateAC:
		ac, err := pdu.ParseAssociateAC(reply.Data)
		if err != nil {
			return nil, err
		}
		a.assoc = a.negotiated(ac, contexts)
	case pdu.TypeAssociateRJ:
		rj, err := pdu.ParseAssociateRJ(reply.Data)
		if err != nil {
			return nil, err
		}
		return nil, rj.Err()
	case pdu.TypeAbort:
		source, reason := pdu.ParseAbort(reply.Data)
		return nil, dicomerr.NewAbortError(source, reason)
	default:
		return nil, dicomerr.NewPDUError(reply.Type, "expected A-ASSOCIATE-AC")
	}

	a.logger.Info().
		Str("association_id", a.assoc.ID).
		Str("calling_ae", config.CallingAETitle).
		Str("called_ae", config.CalledAETitle).
		Int("proposed", len(contexts)).
		Int("accepted", len(a.assoc.AcceptedPresentationContexts())).
		Uint32("peer_max_pdu_length", a.assoc.MaxPDULength).
		Msg("association established")

	return a, nil
}

// proposedContexts builds the presentation contexts for the A-ASSOCIATE-RQ.
func (a *Association) proposedContexts() []*types.PresentationContext {
	if len(a.config.PresentationContexts) > 0 {
		return a.config.PresentationContexts
	}

	contexts := make([]*types.PresentationContext, 0, len(a.config.AbstractSyntaxes))
	id := byte(1)
	for _, abstractSyntax := range a.config.AbstractSyntaxes {
		pc := types.NewPresentationContext(id, abstractSyntax)
		for _, ts := range a.config.PreferredTransferSyntaxes {
			pc.AddTransferSyntax(ts)
		}
		contexts = append(contexts, pc)
		id += 2
	}
	return contexts
}

// negotiated matches the acceptor's answer to the proposed contexts and
// builds the association state.
func (a *Association) negotiated(ac *pdu.AssociateAC, proposed []*types.PresentationContext) *types.AssociationContext {
	assoc := types.NewAssociationContext()
	assoc.ID = uuid.NewString()
	assoc.CalledAETitle = a.config.CalledAETitle
	assoc.CallingAETitle = a.config.CallingAETitle
	assoc.ImplementationClassUID = ac.ImplementationClassUID
	assoc.ImplementationVersion = ac.ImplementationVersion
	if ac.MaxPDULength > 0 {
		assoc.MaxPDULength = ac.MaxPDULength
	}

	byID := make(map[byte]*types.PresentationContext, len(proposed))
	for _, pc := range proposed {
		byID[pc.ID()] = pc
		assoc.AddPresentationContext(pc)
	}

	for _, answer := range ac.PresentationContexts {
		pc, ok := byID[answer.ID()]
		if !ok {
			a.logger.Warn().
				Uint8("context_id", answer.ID()).
				Msg("acceptor answered a context that was never proposed")
			continue
		}

		result := answer.Result()
		transferSyntax := answer.AcceptedTransferSyntax()
		switch {
		case result == types.ResultAccept && transferSyntax == "":
			// An accept without a transfer syntax is unusable.
			a.logger.Warn().
				Uint8("context_id", pc.ID()).
				Str("abstract_syntax", pc.AbstractSyntax()).
				Msg("acceptor accepted context without a transfer syntax")
			pc.SetResult(types.ResultRejectTransferSyntaxesNotSupported)
			continue
		case result == types.ResultAccept:
			pc.SetResultWithTransferSyntax(result, transferSyntax)
		default:
			pc.SetResult(result)
		}

		a.logger.Debug().
			Uint8("context_id", pc.ID()).
			Str("abstract_syntax", pc.AbstractSyntax()).
			Str("transfer_syntax", transferSyntax).
			Stringer("result", result).
			Msg("negotiated presentation context")
	}

	for _, rs := range ac.RoleSelections {
		for _, pc := range proposed {
			if pc.AbstractSyntax() == rs.SOPClassUID {
				pc.SetUserRole(rs.SCURole)
				pc.SetProviderRole(rs.SCPRole)
			}
		}
	}

	return assoc
}

// ID returns the correlation id of this association.
func (a *Association) ID() string {
	return a.assoc.ID
}

// MaxPDULength returns the maximum PDU length the peer announced.
func (a *Association) MaxPDULength() uint32 {
	return a.assoc.MaxPDULength
}

// PresentationContexts returns every proposed context with its negotiation
// outcome, in context id order.
func (a *Association) PresentationContexts() []*types.PresentationContext {
	out := make([]*types.PresentationContext, 0, len(a.assoc.PresentationContexts))
	for _, id := range a.assoc.ContextIDs() {
		pc, _ := a.assoc.PresentationContext(id)
		out = append(out, pc)
	}
	return out
}

// PresentationContext returns the context with the given id.
func (a *Association) PresentationContext(id byte) (*types.PresentationContext, bool) {
	return a.assoc.PresentationContext(id)
}

// AcceptedPresentationContext returns the accepted context with the lowest
// id proposed for the given abstract syntax.
func (a *Association) AcceptedPresentationContext(abstractSyntax string) (*types.PresentationContext, bool) {
	return a.assoc.FindAcceptedPresentationContext(abstractSyntax)
}

// GetPresentationContextID finds an accepted presentation context for the
// given abstract syntax.
func (a *Association) GetPresentationContextID(abstractSyntax string) (byte, error) {
	pc, ok := a.assoc.FindAcceptedPresentationContext(abstractSyntax)
	if !ok {
		return 0, fmt.Errorf("abstract syntax %s: %w", abstractSyntax, dicomerr.ErrNoPresentationCtx)
	}
	return pc.ID(), nil
}

// Close releases the association and closes the connection.
func (a *Association) Close() error {
	if err := a.writePDU(pdu.TypeReleaseRQ, pdu.EncodeRelease()); err != nil {
		a.logger.Warn().Err(err).Msg("failed to send A-RELEASE-RQ")
		return a.conn.Close()
	}

	reply, err := a.readPDU()
	if err != nil {
		a.logger.Warn().Err(err).Msg("no A-RELEASE-RP before close")
	} else if reply.Type != pdu.TypeReleaseRP {
		a.logger.Warn().Str("type", pdu.TypeName(reply.Type)).Msg("unexpected PDU during release")
	}

	return a.conn.Close()
}

// Abort sends an A-ABORT and closes the connection without the release
// handshake.
func (a *Association) Abort() error {
	if err := a.writePDU(pdu.TypeAbort, pdu.EncodeAbort(dicomerr.AbortSourceServiceUser, dicomerr.AbortReasonNotSpecified)); err != nil {
		a.logger.Warn().Err(err).Msg("failed to send A-ABORT")
	}
	return a.conn.Close()
}

// sendDIMSEMessage encodes the command set and writes it, followed by the
// optional dataset, fragmented to the peer's maximum PDU length.
func (a *Association) sendDIMSEMessage(presContextID byte, command *types.Message, dataset []byte) error {
	if err := a.setWriteDeadline(); err != nil {
		return err
	}

	if err := pdu.WritePData(a.conn, presContextID, true, a.assoc.MaxPDULength, dimse.EncodeCommand(command)); err != nil {
		return err
	}
	if len(dataset) > 0 {
		if err := pdu.WritePData(a.conn, presContextID, false, a.assoc.MaxPDULength, dataset); err != nil {
			return err
		}
	}
	return nil
}

// receiveDIMSEMessage reads PDUs until one complete DIMSE message, command
// set plus optional dataset, has been reassembled.
func (a *Association) receiveDIMSEMessage() (*types.Message, []byte, error) {
	var commandData []byte
	var datasetData []byte
	var msg *types.Message
	datasetComplete := false

	for {
		reply, err := a.readPDU()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, nil, fmt.Errorf("reading DIMSE response: %w", dicomerr.ErrConnectionClosed)
			}
			return nil, nil, err
		}

		switch reply.Type {
		case pdu.TypePDataTF:
			pdvs, err := pdu.ParsePDVs(reply.Data)
			if err != nil {
				return nil, nil, err
			}
			for _, pdv := range pdvs {
				if pdv.IsCommand() {
					commandData = append(commandData, pdv.Data...)
					if pdv.IsLastFragment() {
						msg, err = dimse.ParseCommand(commandData)
						if err != nil {
							return nil, nil, err
						}
						commandData = nil
					}
				} else {
					datasetData = append(datasetData, pdv.Data...)
					if pdv.IsLastFragment() {
						datasetComplete = true
					}
				}
			}
		case pdu.TypeAbort:
			source, reason := pdu.ParseAbort(reply.Data)
			return nil, nil, dicomerr.NewAbortError(source, reason)
		default:
			return nil, nil, dicomerr.NewPDUError(reply.Type, "unexpected PDU while waiting for DIMSE message")
		}

		if msg != nil && (!msg.HasDataset() || datasetComplete) {
			return msg, datasetData, nil
		}
	}
}

func (a *Association) setWriteDeadline() error {
	if a.config.WriteTimeout <= 0 {
		return nil
	}
	if err := a.conn.SetWriteDeadline(time.Now().Add(a.config.WriteTimeout)); err != nil {
		return dicomerr.NewNetworkError("set write deadline", err)
	}
	return nil
}

func (a *Association) writePDU(pduType byte, body []byte) error {
	if err := a.setWriteDeadline(); err != nil {
		return err
	}
	if err := pdu.WritePDU(a.conn, pduType, body); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return dicomerr.NewTimeoutError("write "+pdu.TypeName(pduType), a.config.WriteTimeout)
		}
		return err
	}
	return nil
}

func (a *Association) readPDU() (*pdu.PDU, error) {
	if a.config.ReadTimeout > 0 {
		if err := a.conn.SetReadDeadline(time.Now().Add(a.config.ReadTimeout)); err != nil {
			return nil, dicomerr.NewNetworkError("set read deadline", err)
		}
	}
	reply, err := pdu.ReadPDU(a.conn)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, dicomerr.NewTimeoutError("read PDU", a.config.ReadTimeout)
		}
		return nil, err
	}
	return reply, nil
}
