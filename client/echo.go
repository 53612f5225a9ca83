package client

import (
	"fmt"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// CEchoResponse represents the result of a C-ECHO operation.
type CEchoResponse struct {
	Status    uint16
	MessageID uint16
}

// SendCEcho performs a DICOM C-ECHO (verification) request and returns the
// response status. The association must have an accepted verification
// context. A failure or warning class status comes back as a
// *dicomerr.DIMSEError alongside the response.
func (a *Association) SendCEcho(messageID uint16) (*CEchoResponse, error) {
	if messageID == 0 {
		messageID = 1
	}

	presContextID, err := a.GetPresentationContextID(types.VerificationSOPClass)
	if err != nil {
		return nil, err
	}

	command := &types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           messageID,
		CommandDataSetType:  types.CommandDataSetTypeNull,
		AffectedSOPClassUID: types.VerificationSOPClass,
	}

	if err := a.sendDIMSEMessage(presContextID, command, nil); err != nil {
		return nil, fmt.Errorf("failed to send C-ECHO request: %w", err)
	}

	msg, _, err := a.receiveDIMSEMessage()
	if err != nil {
		return nil, err
	}

	if msg.CommandField != types.CEchoRSP {
		return nil, fmt.Errorf("unexpected command %s, expected C-ECHO-RSP", types.CommandName(msg.CommandField))
	}

	resp := &CEchoResponse{
		Status:    msg.Status,
		MessageID: msg.MessageIDBeingRespondedTo,
	}

	if msg.Status != types.StatusSuccess {
		derr := dicomerr.NewDIMSEError("C-ECHO", msg.Status, "verification not successful")
		if derr.IsFailure() || derr.IsWarning() {
			return resp, derr
		}
	}

	return resp, nil
}
