// Package interfaces contains the service handler contracts shared by the
// DIMSE layer and the service implementations.
package interfaces

import (
	"context"

	"github.com/kimsuk/fo-dicom/types"
)

// MessageContext describes the association a DIMSE message arrived on.
type MessageContext struct {
	AssociationID         string
	PresentationContextID byte
	AbstractSyntax        string
	TransferSyntax        string
	CallingAETitle        string
	CalledAETitle         string
}

// ServiceHandler interface for handling DIMSE operations
type ServiceHandler interface {
	HandleDIMSE(ctx context.Context, mctx *MessageContext, msg *types.Message, data []byte) (*types.Message, []byte, error)
}

// StreamingServiceHandler interface for multi-response DIMSE operations
type StreamingServiceHandler interface {
	HandleDIMSEStreaming(ctx context.Context, mctx *MessageContext, msg *types.Message, data []byte, responder ResponseSender) error
}

// ResponseSender interface for sending intermediate responses
type ResponseSender interface {
	SendResponse(msg *types.Message, data []byte) error
}
