// Package dimse encodes and decodes DIMSE command sets and routes complete
// messages between the PDU layer and the service handlers.
package dimse

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// maxElementLength guards against corrupt length fields in command sets.
const maxElementLength = 1 << 20

// appendElement appends one implicit VR little endian element.
func appendElement(buf []byte, tag types.Tag, value []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, tag.Group)
	buf = binary.LittleEndian.AppendUint16(buf, tag.Element)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func appendUint16Element(buf []byte, tag types.Tag, value uint16) []byte {
	return appendElement(buf, tag, binary.LittleEndian.AppendUint16(nil, value))
}

// appendUIDElement appends a UID value NUL padded to even length.
func appendUIDElement(buf []byte, tag types.Tag, uid string) []byte {
	value := []byte(uid)
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	return appendElement(buf, tag, value)
}

// appendAEElement appends an AE title value space padded to even length.
func appendAEElement(buf []byte, tag types.Tag, title string) []byte {
	value := []byte(title)
	if len(value)%2 == 1 {
		value = append(value, ' ')
	}
	return appendElement(buf, tag, value)
}

// EncodeCommand serializes a command set in implicit VR little endian with
// the group length element first and the remaining elements in ascending
// tag order.
func EncodeCommand(msg *types.Message) []byte {
	var elements []byte

	if msg.AffectedSOPClassUID != "" {
		elements = appendUIDElement(elements, types.TagAffectedSOPClassUID, msg.AffectedSOPClassUID)
	}
	if msg.RequestedSOPClassUID != "" {
		elements = appendUIDElement(elements, types.TagRequestedSOPClassUID, msg.RequestedSOPClassUID)
	}

	elements = appendUint16Element(elements, types.TagCommandField, msg.CommandField)

	if msg.MessageID > 0 {
		elements = appendUint16Element(elements, types.TagMessageID, msg.MessageID)
	}
	if msg.MessageIDBeingRespondedTo > 0 {
		elements = appendUint16Element(elements, types.TagMessageIDBeingRespondedTo, msg.MessageIDBeingRespondedTo)
	}
	if msg.MoveDestination != "" {
		elements = appendAEElement(elements, types.TagMoveDestination, msg.MoveDestination)
	}

	switch msg.CommandField {
	case types.CStoreRQ, types.CFindRQ, types.CGetRQ, types.CMoveRQ:
		elements = appendUint16Element(elements, types.TagPriority, msg.Priority)
	}

	elements = appendUint16Element(elements, types.TagCommandDataSetType, msg.CommandDataSetType)

	if msg.CommandField&0x8000 != 0 {
		elements = appendUint16Element(elements, types.TagStatus, msg.Status)
	}
	if msg.AffectedSOPInstanceUID != "" {
		elements = appendUIDElement(elements, types.TagAffectedSOPInstanceUID, msg.AffectedSOPInstanceUID)
	}

	groupLength := binary.LittleEndian.AppendUint32(nil, uint32(len(elements)))
	cmd := appendElement(nil, types.TagCommandGroupLength, groupLength)
	return append(cmd, elements...)
}

// ParseCommand decodes an implicit VR little endian command set. Elements
// outside group 0000 and unknown group 0000 elements are skipped.
func ParseCommand(data []byte) (*types.Message, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("command set too short: %d bytes: %w", len(data), dicomerr.ErrInvalidMessage)
	}

	msg := &types.Message{}

	offset := 0
	for offset+8 <= len(data) {
		tag := types.Tag{
			Group:   binary.LittleEndian.Uint16(data[offset : offset+2]),
			Element: binary.LittleEndian.Uint16(data[offset+2 : offset+4]),
		}
		length := binary.LittleEndian.Uint32(data[offset+4 : offset+8])

		if length > maxElementLength {
			return nil, fmt.Errorf("command element %s length %d exceeds limit: %w", tag, length, dicomerr.ErrInvalidMessage)
		}
		valueEnd := offset + 8 + int(length)
		if valueEnd > len(data) {
			return nil, fmt.Errorf("command element %s exceeds message length: %w", tag, dicomerr.ErrInvalidMessage)
		}
		value := data[offset+8 : valueEnd]

		switch tag {
		case types.TagCommandField:
			if v, ok := uint16Value(value); ok {
				msg.CommandField = v
			}
		case types.TagMessageID:
			if v, ok := uint16Value(value); ok {
				msg.MessageID = v
			}
		case types.TagMessageIDBeingRespondedTo:
			if v, ok := uint16Value(value); ok {
				msg.MessageIDBeingRespondedTo = v
			}
		case types.TagPriority:
			if v, ok := uint16Value(value); ok {
				msg.Priority = v
			}
		case types.TagCommandDataSetType:
			if v, ok := uint16Value(value); ok {
				msg.CommandDataSetType = v
			}
		case types.TagStatus:
			if v, ok := uint16Value(value); ok {
				msg.Status = v
			}
		case types.TagAffectedSOPClassUID:
			msg.AffectedSOPClassUID = trimPadding(value)
		case types.TagRequestedSOPClassUID:
			msg.RequestedSOPClassUID = trimPadding(value)
		case types.TagAffectedSOPInstanceUID:
			msg.AffectedSOPInstanceUID = trimPadding(value)
		case types.TagMoveDestination:
			msg.MoveDestination = trimPadding(value)
		}

		offset = valueEnd
	}

	if msg.CommandField == 0 {
		return nil, fmt.Errorf("command set missing command field: %w", dicomerr.ErrInvalidMessage)
	}

	return msg, nil
}

func uint16Value(value []byte) (uint16, bool) {
	if len(value) != 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(value), true
}

// trimPadding strips the NUL or space padding DICOM string values carry.
func trimPadding(value []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(value), "\x00"))
}
