package client

import (
	"fmt"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// SendCCancel sends a C-CANCEL-RQ for a pending C-FIND or C-MOVE operation.
// The messageID must match the MessageID of the operation being canceled.
// C-CANCEL has no response of its own; the canceled operation answers with a
// cancel status.
func (a *Association) SendCCancel(messageID uint16, sopClassUID string) error {
	if messageID == 0 {
		return fmt.Errorf("messageID must be non-zero for C-CANCEL")
	}
	if sopClassUID == "" {
		return fmt.Errorf("sopClassUID must be provided for C-CANCEL")
	}

	presContextID, err := a.GetPresentationContextID(sopClassUID)
	if err != nil {
		return err
	}

	command := &types.Message{
		CommandField:              types.CCancelRQ,
		MessageIDBeingRespondedTo: messageID,
		CommandDataSetType:        types.CommandDataSetTypeNull,
	}

	if err := a.sendDIMSEMessage(presContextID, command, nil); err != nil {
		return fmt.Errorf("failed to send C-CANCEL request: %w", err)
	}

	a.logger.Debug().
		Uint16("message_id", messageID).
		Str("sop_class_uid", sopClassUID).
		Msg("C-CANCEL sent")

	return nil
}

// AwaitCancel reads responses for the canceled operation until its final
// status arrives, skipping pending matches that were already in flight when
// the C-CANCEL-RQ crossed them. It returns ErrOperationCanceled once the
// peer confirms the cancel, nil when the operation completed successfully
// before the cancel took effect, and the failing status as a *DIMSEError
// otherwise. A zero messageID accepts responses to any message.
func (a *Association) AwaitCancel(messageID uint16) error {
	for {
		msg, _, err := a.receiveDIMSEMessage()
		if err != nil {
			return err
		}

		if messageID != 0 && msg.MessageIDBeingRespondedTo != messageID {
			a.logger.Warn().
				Uint16("message_id", msg.MessageIDBeingRespondedTo).
				Uint16("expected", messageID).
				Msg("response for another message while awaiting cancel")
			continue
		}

		if msg.Status == types.StatusCancel {
			a.logger.Debug().
				Uint16("message_id", messageID).
				Str("command", types.CommandName(msg.CommandField)).
				Msg("peer confirmed cancel")
			return fmt.Errorf("%s: %w", types.CommandName(msg.CommandField), dicomerr.ErrOperationCanceled)
		}

		derr := dicomerr.NewDIMSEError(types.CommandName(msg.CommandField), msg.Status, "operation ended without cancel confirmation")
		if derr.IsPending() {
			continue
		}
		if derr.IsSuccess() {
			return nil
		}
		return derr
	}
}
