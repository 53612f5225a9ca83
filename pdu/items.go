package pdu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Variable item and sub-item types from PS3.8 section 9.3.
const (
	itemApplicationContext     byte = 0x10
	itemPresentationContextRQ  byte = 0x20
	itemPresentationContextAC  byte = 0x21
	itemAbstractSyntax         byte = 0x30
	itemTransferSyntax         byte = 0x40
	itemUserInformation        byte = 0x50
	itemMaxPDULength           byte = 0x51
	itemImplementationClassUID byte = 0x52
	itemRoleSelection          byte = 0x54
	itemImplementationVersion  byte = 0x55
)

// appendItem appends one type-length-value item to buf.
func appendItem(buf []byte, itemType byte, value []byte) []byte {
	buf = append(buf, itemType, 0x00)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

// nextItem decodes the item starting at offset and returns its type, value
// and the offset of the item that follows.
func nextItem(data []byte, offset int) (byte, []byte, int, error) {
	if offset+4 > len(data) {
		return 0, nil, 0, fmt.Errorf("truncated item header at offset %d", offset)
	}

	itemType := data[offset]
	itemLength := binary.BigEndian.Uint16(data[offset+2 : offset+4])
	valueStart := offset + 4
	valueEnd := valueStart + int(itemLength)
	if valueEnd > len(data) {
		return 0, nil, 0, fmt.Errorf("item 0x%02x exceeds enclosing length", itemType)
	}

	return itemType, data[valueStart:valueEnd], valueEnd, nil
}

// normalizeUID strips the trailing NUL or space padding some peers put on
// UID values.
func normalizeUID(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00 ")
}

// padAETitle space pads an application entity title to the fixed 16 byte
// field, truncating anything longer.
func padAETitle(title string) []byte {
	if len(title) > 16 {
		title = title[:16]
	}
	return []byte(fmt.Sprintf("%-16s", title))
}

// parseAETitle decodes a 16 byte AE title field, tolerating NUL padding.
func parseAETitle(raw []byte) string {
	title := string(raw)
	if idx := strings.IndexByte(title, 0); idx != -1 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}
