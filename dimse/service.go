package dimse

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/interfaces"
	"github.com/kimsuk/fo-dicom/pdu"
	"github.com/kimsuk/fo-dicom/types"
)

// PDULayer is the transport surface the DIMSE layer sends responses through.
// *pdu.Layer implements it on the acceptor side.
type PDULayer interface {
	SendDIMSEResponse(presContextID byte, commandData []byte) error
	SendDIMSEResponseWithDataset(presContextID byte, commandData, datasetData []byte) error
	Association() *types.AssociationContext
}

// Service reassembles DIMSE messages from PDV fragments and dispatches them
// to a ServiceHandler. A Service belongs to one association and is not safe
// for concurrent use.
type Service struct {
	handler interfaces.ServiceHandler
	logger  zerolog.Logger

	commandData []byte
	datasetData []byte
	currentMsg  *types.Message
}

// NewService creates a DIMSE service dispatching to handler.
func NewService(handler interfaces.ServiceHandler, logger zerolog.Logger) *Service {
	return &Service{
		handler: handler,
		logger:  logger,
	}
}

// HandleDIMSEMessage accumulates one PDV fragment. When the fragment
// completes a command set with no dataset, or completes the dataset that
// follows one, the full message is dispatched to the handler.
func (d *Service) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer PDULayer) error {
	isCommand := msgCtrlHeader&pdu.PDVCommand != 0
	isLast := msgCtrlHeader&pdu.PDVLastFragment != 0

	if isCommand {
		d.commandData = append(d.commandData, data...)
		if !isLast {
			return nil
		}
		msg, err := ParseCommand(d.commandData)
		d.commandData = nil
		if err != nil {
			return fmt.Errorf("parse command set: %w", err)
		}
		if msg.HasDataset() {
			d.currentMsg = msg
			return nil
		}
		return d.processCompleteMessage(presContextID, msg, nil, pduLayer)
	}

	if d.currentMsg == nil {
		return fmt.Errorf("dataset fragment without a preceding command set: %w", dicomerr.ErrInvalidMessage)
	}
	d.datasetData = append(d.datasetData, data...)
	if !isLast {
		return nil
	}

	msg := d.currentMsg
	dataset := d.datasetData
	d.currentMsg = nil
	d.datasetData = nil
	return d.processCompleteMessage(presContextID, msg, dataset, pduLayer)
}

func (d *Service) processCompleteMessage(presContextID byte, msg *types.Message, dataset []byte, pduLayer PDULayer) error {
	mctx := messageContext(presContextID, pduLayer)

	d.logger.Debug().
		Str("association_id", mctx.AssociationID).
		Str("command", types.CommandName(msg.CommandField)).
		Uint8("presentation_context_id", presContextID).
		Int("dataset_bytes", len(dataset)).
		Msg("DIMSE message received")

	ctx := context.Background()

	if streaming, ok := d.handler.(interfaces.StreamingServiceHandler); ok {
		responder := &responseSender{pduLayer: pduLayer, presContextID: presContextID}
		if err := streaming.HandleDIMSEStreaming(ctx, mctx, msg, dataset, responder); err != nil {
			return fmt.Errorf("handle %s: %w", types.CommandName(msg.CommandField), err)
		}
		return nil
	}

	rsp, rspData, err := d.handler.HandleDIMSE(ctx, mctx, msg, dataset)
	if err != nil {
		return fmt.Errorf("handle %s: %w", types.CommandName(msg.CommandField), err)
	}
	if rsp == nil {
		return nil
	}
	return sendMessage(pduLayer, presContextID, rsp, rspData)
}

// messageContext resolves the association state a handler needs to interpret
// one message: who is calling, and under which negotiated context.
func messageContext(presContextID byte, pduLayer PDULayer) *interfaces.MessageContext {
	mctx := &interfaces.MessageContext{PresentationContextID: presContextID}
	assoc := pduLayer.Association()
	if assoc == nil {
		return mctx
	}
	mctx.AssociationID = assoc.ID
	mctx.CallingAETitle = assoc.CallingAETitle
	mctx.CalledAETitle = assoc.CalledAETitle
	if pc, ok := assoc.PresentationContext(presContextID); ok {
		mctx.AbstractSyntax = pc.AbstractSyntax()
		mctx.TransferSyntax = pc.AcceptedTransferSyntax()
	}
	return mctx
}

func sendMessage(pduLayer PDULayer, presContextID byte, msg *types.Message, data []byte) error {
	cmd := EncodeCommand(msg)
	if len(data) > 0 {
		return pduLayer.SendDIMSEResponseWithDataset(presContextID, cmd, data)
	}
	return pduLayer.SendDIMSEResponse(presContextID, cmd)
}

// responseSender lets streaming handlers emit intermediate responses, such
// as C-FIND pending matches, before the final status.
type responseSender struct {
	pduLayer      PDULayer
	presContextID byte
}

func (r *responseSender) SendResponse(msg *types.Message, data []byte) error {
	return sendMessage(r.pduLayer, r.presContextID, msg, data)
}
