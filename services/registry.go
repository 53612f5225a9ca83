package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/interfaces"
	"github.com/kimsuk/fo-dicom/types"
)

// Registry routes incoming DIMSE messages to service handlers by command field.
//
// The registry implements both interfaces.ServiceHandler and
// interfaces.StreamingServiceHandler, so it can be installed directly as the
// handler of a dimse.Service. Handlers registered for multi-response
// operations such as C-FIND may implement StreamingServiceHandler themselves;
// single-response handlers are adapted automatically.
//
// Example usage:
//
//	registry := services.NewRegistry(logger)
//	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService(logger))
//	registry.RegisterHandler(types.CFindRQ, myFindService)
type Registry struct {
	handlers map[uint16]interfaces.ServiceHandler
	logger   zerolog.Logger
}

// NewRegistry creates an empty service registry. Use RegisterHandler to add
// service handlers.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint16]interfaces.ServiceHandler),
		logger:   logger,
	}
}

// RegisterHandler registers a service handler for a DIMSE command.
//
// Only one handler can be registered per command field; calling
// RegisterHandler again with the same command replaces the previous handler.
//
// Parameters:
//   - commandField: The DIMSE command field (e.g., types.CEchoRQ, types.CFindRQ)
//   - handler: The service handler that will process messages for this command
func (r *Registry) RegisterHandler(commandField uint16, handler interfaces.ServiceHandler) {
	r.handlers[commandField] = handler
}

// UnregisterHandler removes the service handler for a DIMSE command.
//
// After unregistering, messages with this command field fail with an
// unsupported command error.
func (r *Registry) UnregisterHandler(commandField uint16) {
	delete(r.handlers, commandField)
}

// HandleDIMSE routes a DIMSE message to the registered handler.
//
// This is the single-response path. For operations that may return multiple
// responses, such as C-FIND, the DIMSE layer calls HandleDIMSEStreaming
// instead.
func (r *Registry) HandleDIMSE(ctx context.Context, mctx *interfaces.MessageContext, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	handler, ok := r.handlers[msg.CommandField]
	if !ok {
		r.logger.Warn().
			Str("association_id", mctx.AssociationID).
			Str("command", types.CommandName(msg.CommandField)).
			Msg("no handler registered for DIMSE command")
		return nil, nil, fmt.Errorf("unsupported DIMSE command %s", types.CommandName(msg.CommandField))
	}

	return handler.HandleDIMSE(ctx, mctx, msg, data)
}

// HandleDIMSEStreaming routes a DIMSE message to the registered handler,
// preferring its streaming interface.
//
// If the registered handler implements interfaces.StreamingServiceHandler the
// message is dispatched through it and the handler sends its own responses
// through the responder. Otherwise the single-response HandleDIMSE result is
// forwarded through the responder.
func (r *Registry) HandleDIMSEStreaming(ctx context.Context, mctx *interfaces.MessageContext, msg *types.Message, data []byte, responder interfaces.ResponseSender) error {
	handler, ok := r.handlers[msg.CommandField]
	if !ok {
		r.logger.Warn().
			Str("association_id", mctx.AssociationID).
			Str("command", types.CommandName(msg.CommandField)).
			Msg("no handler registered for DIMSE command")
		return fmt.Errorf("unsupported DIMSE command %s", types.CommandName(msg.CommandField))
	}

	if streaming, ok := handler.(interfaces.StreamingServiceHandler); ok {
		return streaming.HandleDIMSEStreaming(ctx, mctx, msg, data, responder)
	}

	rsp, rspData, err := handler.HandleDIMSE(ctx, mctx, msg, data)
	if err != nil {
		return err
	}
	if rsp == nil {
		return nil
	}
	return responder.SendResponse(rsp, rspData)
}

// HasHandler returns true if a handler is registered for the command field.
func (r *Registry) HasHandler(commandField uint16) bool {
	_, ok := r.handlers[commandField]
	return ok
}

// RegisteredCommands returns the command fields that have handlers registered.
func (r *Registry) RegisteredCommands() []uint16 {
	commands := make([]uint16, 0, len(r.handlers))
	for cmd := range r.handlers {
		commands = append(commands, cmd)
	}
	return commands
}

// CreateErrorResponse creates a standard DIMSE error response for a failed
// request: the matching response command, the message id being responded to
// and the given status, with no dataset.
func CreateErrorResponse(req *types.Message, status uint16) *types.Message {
	return &types.Message{
		CommandField:              types.ResponseCommandFor(req.CommandField),
		MessageIDBeingRespondedTo: req.MessageID,
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    status,
	}
}
