// Package pdu implements the DICOM Upper Layer Protocol: PDU framing,
// association negotiation and P-DATA-TF transport.
package pdu

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

// PDU types
const (
	TypeAssociateRQ byte = 0x01
	TypeAssociateAC byte = 0x02
	TypeAssociateRJ byte = 0x03
	TypePDataTF     byte = 0x04
	TypeReleaseRQ   byte = 0x05
	TypeReleaseRP   byte = 0x06
	TypeAbort       byte = 0x07
)

// PDV message control header bits
const (
	PDVCommand      byte = 0x01
	PDVLastFragment byte = 0x02
)

// maxPDUBodyLength caps how much a single PDU may ask us to buffer.
const maxPDUBodyLength = 16 * 1024 * 1024

// PDU represents a Protocol Data Unit
type PDU struct {
	Type byte
	Data []byte
}

// TypeName returns the protocol name of a PDU type for logging.
func TypeName(pduType byte) string {
	switch pduType {
	case TypeAssociateRQ:
		return "A-ASSOCIATE-RQ"
	case TypeAssociateAC:
		return "A-ASSOCIATE-AC"
	case TypeAssociateRJ:
		return "A-ASSOCIATE-RJ"
	case TypePDataTF:
		return "P-DATA-TF"
	case TypeReleaseRQ:
		return "A-RELEASE-RQ"
	case TypeReleaseRP:
		return "A-RELEASE-RP"
	case TypeAbort:
		return "A-ABORT"
	default:
		return fmt.Sprintf("0x%02x", pduType)
	}
}

// ReadPDU reads one complete PDU from r. A clean connection close before
// the first header byte surfaces as io.EOF.
func ReadPDU(r io.Reader) (*PDU, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	pduType := header[0]
	pduLength := binary.BigEndian.Uint32(header[2:6])
	if pduLength > maxPDUBodyLength {
		return nil, dicomerr.NewPDUError(pduType, fmt.Sprintf("PDU length %d exceeds limit", pduLength))
	}

	data := make([]byte, pduLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, dicomerr.NewNetworkError("read PDU body", err)
	}

	return &PDU{Type: pduType, Data: data}, nil
}

// WritePDU frames data with the 6 byte PDU header and writes it to w in a
// single call.
func WritePDU(w io.Writer, pduType byte, data []byte) error {
	buf := make([]byte, 6+len(data))
	buf[0] = pduType
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(data)))
	copy(buf[6:], data)

	if _, err := w.Write(buf); err != nil {
		return dicomerr.NewNetworkError("write "+TypeName(pduType), err)
	}
	return nil
}

// PDV is one presentation data value carried in a P-DATA-TF PDU.
type PDV struct {
	PresentationContextID byte
	ControlHeader         byte
	Data                  []byte
}

// IsCommand reports whether the PDV carries command set bytes.
func (v PDV) IsCommand() bool { return v.ControlHeader&PDVCommand != 0 }

// IsLastFragment reports whether the PDV completes its message portion.
func (v PDV) IsLastFragment() bool { return v.ControlHeader&PDVLastFragment != 0 }

// ParsePDVs splits a P-DATA-TF body into its presentation data values.
func ParsePDVs(data []byte) ([]PDV, error) {
	var pdvs []PDV

	offset := 0
	for offset < len(data) {
		if offset+6 > len(data) {
			return nil, dicomerr.NewPDUError(TypePDataTF, "truncated PDV header")
		}
		pdvLength := binary.BigEndian.Uint32(data[offset : offset+4])
		if pdvLength < 2 {
			return nil, dicomerr.NewPDUError(TypePDataTF, "PDV too short")
		}
		// Must precede the int conversion: a huge claimed length wraps
		// negative on 32 bit platforms.
		if pdvLength > maxPDUBodyLength {
			return nil, dicomerr.NewPDUError(TypePDataTF, fmt.Sprintf("PDV length %d exceeds limit", pdvLength))
		}
		valueEnd := offset + 4 + int(pdvLength)
		if valueEnd > len(data) {
			return nil, dicomerr.NewPDUError(TypePDataTF, "incomplete PDV data")
		}

		pdvs = append(pdvs, PDV{
			PresentationContextID: data[offset+4],
			ControlHeader:         data[offset+5],
			Data:                  data[offset+6 : valueEnd],
		})
		offset = valueEnd
	}

	return pdvs, nil
}

// WritePData fragments data into PDVs that fit maxPDULength and writes one
// P-DATA-TF PDU per fragment. A zero maxPDULength falls back to the protocol
// default.
func WritePData(w io.Writer, presContextID byte, isCommand bool, maxPDULength uint32, data []byte) error {
	if maxPDULength == 0 {
		maxPDULength = types.DefaultMaxPDULength
	}

	// A PDV spends 4 bytes on its length prefix and 2 on the context id
	// and control header.
	maxFragment := int(maxPDULength) - 6
	if maxFragment < 1 {
		maxFragment = 1
	}

	offset := 0
	for {
		remaining := len(data) - offset
		fragment := remaining
		last := true
		if fragment > maxFragment {
			fragment = maxFragment
			last = false
		}

		var ctrl byte
		if isCommand {
			ctrl |= PDVCommand
		}
		if last {
			ctrl |= PDVLastFragment
		}

		pdv := make([]byte, 0, 6+fragment)
		pdv = binary.BigEndian.AppendUint32(pdv, uint32(fragment+2))
		pdv = append(pdv, presContextID, ctrl)
		pdv = append(pdv, data[offset:offset+fragment]...)

		if err := WritePDU(w, TypePDataTF, pdv); err != nil {
			return err
		}

		offset += fragment
		if last {
			return nil
		}
	}
}
