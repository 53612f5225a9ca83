package dimse

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// element builds one raw implicit VR little endian element.
func element(tag types.Tag, value []byte) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint16(buf, tag.Group)
	buf = binary.LittleEndian.AppendUint16(buf, tag.Element)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
	return append(buf, value...)
}

func uint16LE(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func uint32LE(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func TestEncodeCommand_CEchoRSPLayout(t *testing.T) {
	msg := &types.Message{
		CommandField:              types.CEchoRSP,
		MessageIDBeingRespondedTo: 7,
		AffectedSOPClassUID:       types.VerificationSOPClass,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    types.StatusSuccess,
	}

	var elements []byte
	elements = append(elements, element(types.TagAffectedSOPClassUID, []byte("1.2.840.10008.1.1\x00"))...)
	elements = append(elements, element(types.TagCommandField, uint16LE(types.CEchoRSP))...)
	elements = append(elements, element(types.TagMessageIDBeingRespondedTo, uint16LE(7))...)
	elements = append(elements, element(types.TagCommandDataSetType, uint16LE(types.CommandDataSetTypeNull))...)
	elements = append(elements, element(types.TagStatus, uint16LE(types.StatusSuccess))...)

	want := element(types.TagCommandGroupLength, uint32LE(uint32(len(elements))))
	want = append(want, elements...)

	assert.Equal(t, want, EncodeCommand(msg))
}

func TestEncodeCommand_GroupLengthCoversElements(t *testing.T) {
	encoded := EncodeCommand(&types.Message{
		CommandField:        types.CEchoRQ,
		MessageID:           1,
		AffectedSOPClassUID: types.VerificationSOPClass,
		CommandDataSetType:  types.CommandDataSetTypeNull,
	})

	require.GreaterOrEqual(t, len(encoded), 12)
	assert.Equal(t, uint16(0x0000), binary.LittleEndian.Uint16(encoded[0:2]))
	assert.Equal(t, uint16(0x0000), binary.LittleEndian.Uint16(encoded[2:4]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(encoded[4:8]))

	groupLength := binary.LittleEndian.Uint32(encoded[8:12])
	assert.Equal(t, uint32(len(encoded)-12), groupLength)
}

func TestEncodeCommand_PriorityOnRequestsOnly(t *testing.T) {
	priorityTag := element(types.TagPriority, uint16LE(types.PriorityHigh))[:8]

	tests := []struct {
		name         string
		commandField uint16
		wantPriority bool
	}{
		{"C-STORE-RQ", types.CStoreRQ, true},
		{"C-FIND-RQ", types.CFindRQ, true},
		{"C-GET-RQ", types.CGetRQ, true},
		{"C-MOVE-RQ", types.CMoveRQ, true},
		{"C-ECHO-RQ", types.CEchoRQ, false},
		{"C-STORE-RSP", types.CStoreRSP, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeCommand(&types.Message{
				CommandField:       tt.commandField,
				MessageID:          1,
				Priority:           types.PriorityHigh,
				CommandDataSetType: types.CommandDataSetTypeNull,
			})
			assert.Equal(t, tt.wantPriority, bytes.Contains(encoded, priorityTag))
		})
	}
}

func TestEncodeCommand_StatusOnResponsesOnly(t *testing.T) {
	statusTagHeader := element(types.TagStatus, nil)

	rq := EncodeCommand(&types.Message{
		CommandField:       types.CEchoRQ,
		MessageID:          1,
		CommandDataSetType: types.CommandDataSetTypeNull,
	})
	assert.False(t, bytes.Contains(rq, statusTagHeader[:4]))

	rsp := EncodeCommand(&types.Message{
		CommandField:              types.CEchoRSP,
		MessageIDBeingRespondedTo: 1,
		CommandDataSetType:        types.CommandDataSetTypeNull,
		Status:                    types.StatusSuccess,
	})
	assert.True(t, bytes.Contains(rsp, statusTagHeader[:4]))
}

func TestEncodeCommand_OddLengthValuesPadded(t *testing.T) {
	encoded := EncodeCommand(&types.Message{
		CommandField:        types.CMoveRQ,
		MessageID:           3,
		AffectedSOPClassUID: types.StudyRootQueryRetrieveInformationModelMove,
		MoveDestination:     "STORE",
		CommandDataSetType:  0x0000,
	})

	uid := types.StudyRootQueryRetrieveInformationModelMove
	require.Equal(t, 1, len(uid)%2)
	assert.True(t, bytes.Contains(encoded, element(types.TagAffectedSOPClassUID, append([]byte(uid), 0x00))))
	assert.True(t, bytes.Contains(encoded, element(types.TagMoveDestination, []byte("STORE "))))
}

func TestEncodeParseCommand_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  types.Message
	}{
		{
			name: "C-ECHO request",
			msg: types.Message{
				CommandField:        types.CEchoRQ,
				MessageID:           1,
				AffectedSOPClassUID: types.VerificationSOPClass,
				CommandDataSetType:  types.CommandDataSetTypeNull,
			},
		},
		{
			name: "C-ECHO response",
			msg: types.Message{
				CommandField:              types.CEchoRSP,
				MessageIDBeingRespondedTo: 1,
				AffectedSOPClassUID:       types.VerificationSOPClass,
				CommandDataSetType:        types.CommandDataSetTypeNull,
				Status:                    types.StatusSuccess,
			},
		},
		{
			name: "C-STORE request with instance UID",
			msg: types.Message{
				CommandField:           types.CStoreRQ,
				MessageID:              42,
				AffectedSOPClassUID:    types.CTImageStorage,
				AffectedSOPInstanceUID: "1.2.3.4.5.6.7.8.9",
				Priority:               types.PriorityMedium,
				CommandDataSetType:     0x0000,
			},
		},
		{
			name: "C-FIND pending response",
			msg: types.Message{
				CommandField:              types.CFindRSP,
				MessageIDBeingRespondedTo: 5,
				AffectedSOPClassUID:       types.StudyRootQueryRetrieveInformationModelFind,
				CommandDataSetType:        0x0000,
				Status:                    types.StatusPending,
			},
		},
		{
			name: "C-MOVE request with destination",
			msg: types.Message{
				CommandField:        types.CMoveRQ,
				MessageID:           9,
				AffectedSOPClassUID: types.PatientRootQueryRetrieveInformationModelMove,
				MoveDestination:     "REMOTE-SCP",
				Priority:            types.PriorityLow,
				CommandDataSetType:  0x0000,
			},
		},
		{
			name: "C-GET request with requested SOP class",
			msg: types.Message{
				CommandField:         types.CGetRQ,
				MessageID:            11,
				RequestedSOPClassUID: types.StudyRootQueryRetrieveInformationModelGet,
				Priority:             types.PriorityMedium,
				CommandDataSetType:   0x0000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseCommand(EncodeCommand(&tt.msg))
			require.NoError(t, err)
			assert.Equal(t, tt.msg, *parsed)
		})
	}
}

func TestParseCommand_SkipsUnknownElements(t *testing.T) {
	var buf []byte
	buf = append(buf, element(types.TagCommandGroupLength, uint32LE(0))...)
	buf = append(buf, element(types.Tag{Group: 0x0000, Element: 0x0200}, []byte{0x01, 0x00})...)
	buf = append(buf, element(types.TagCommandField, uint16LE(types.CEchoRQ))...)
	buf = append(buf, element(types.Tag{Group: 0x0008, Element: 0x0018}, []byte("1.2.3\x00"))...)
	buf = append(buf, element(types.TagMessageID, uint16LE(4))...)

	msg, err := ParseCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, types.CEchoRQ, msg.CommandField)
	assert.Equal(t, uint16(4), msg.MessageID)
}

func TestParseCommand_WrongSizeUint16ValueSkipped(t *testing.T) {
	var buf []byte
	buf = append(buf, element(types.TagMessageID, []byte{0x01, 0x00, 0x00, 0x00})...)
	buf = append(buf, element(types.TagCommandField, uint16LE(types.CEchoRQ))...)

	msg, err := ParseCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, types.CEchoRQ, msg.CommandField)
	assert.Zero(t, msg.MessageID)
}

func TestParseCommand_PaddedStringsTrimmed(t *testing.T) {
	var buf []byte
	buf = append(buf, element(types.TagCommandField, uint16LE(types.CMoveRQ))...)
	buf = append(buf, element(types.TagAffectedSOPClassUID, []byte("1.2.840.10008.1.1\x00"))...)
	buf = append(buf, element(types.TagMoveDestination, []byte("DEST-AE "))...)

	msg, err := ParseCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.10008.1.1", msg.AffectedSOPClassUID)
	assert.Equal(t, "DEST-AE", msg.MoveDestination)
}

func TestParseCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "empty",
			data: nil,
		},
		{
			name: "shorter than one element header",
			data: []byte{0x00, 0x00, 0x00, 0x01, 0x02},
		},
		{
			name: "element value exceeds message",
			data: func() []byte {
				buf := element(types.TagCommandField, uint16LE(types.CEchoRQ))
				binary.LittleEndian.PutUint32(buf[4:8], 64)
				return buf
			}(),
		},
		{
			name: "element length over limit",
			data: func() []byte {
				buf := element(types.TagCommandField, uint16LE(types.CEchoRQ))
				binary.LittleEndian.PutUint32(buf[4:8], maxElementLength+1)
				return buf
			}(),
		},
		{
			name: "missing command field",
			data: element(types.TagMessageID, uint16LE(1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, dicomerr.ErrInvalidMessage)
		})
	}
}

func TestParseCommand_TrailingBytesShorterThanHeaderIgnored(t *testing.T) {
	buf := element(types.TagCommandField, uint16LE(types.CEchoRQ))
	buf = append(buf, 0x00, 0x00, 0x00)

	msg, err := ParseCommand(buf)
	require.NoError(t, err)
	assert.Equal(t, types.CEchoRQ, msg.CommandField)
}
