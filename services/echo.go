// Package services provides reusable DICOM service implementations.
//
// This package contains standard DICOM service implementations that can be
// used by any DICOM server application. These implementations follow the
// DICOM standard and have no external backend dependencies.
package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/interfaces"
	"github.com/kimsuk/fo-dicom/types"
)

// EchoService handles C-ECHO verification requests.
//
// C-ECHO verifies connectivity and application-level communication between
// two DICOM Application Entities. It is the DICOM equivalent of a ping.
// The service is stateless and requires no external dependencies.
type EchoService struct {
	logger zerolog.Logger
}

// NewEchoService creates a C-ECHO service instance.
func NewEchoService(logger zerolog.Logger) *EchoService {
	return &EchoService{logger: logger}
}

// HandleDIMSE processes a C-ECHO request and returns a success response.
//
// C-ECHO carries no dataset in either direction (DICOM PS3.4 Annex A); the
// response simply reports that this application entity is operational.
func (s *EchoService) HandleDIMSE(ctx context.Context, mctx *interfaces.MessageContext, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	s.logger.Info().
		Str("association_id", mctx.AssociationID).
		Str("calling_ae", mctx.CallingAETitle).
		Uint16("message_id", msg.MessageID).
		Msg("C-ECHO request")

	return NewCEchoResponse(msg, types.StatusSuccess), nil, nil
}

// HealthCheck verifies that the echo service is operational. The echo
// service is stateless, so this always reports healthy.
func (s *EchoService) HealthCheck(ctx context.Context) error {
	return nil
}
