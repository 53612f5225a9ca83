// Package types contains the DICOM protocol type definitions shared by the
// pdu, dimse and service layers: presentation contexts, association state,
// DIMSE messages and the UID catalogs.
package types

import "fmt"

// Tag represents a DICOM tag (group, element).
type Tag struct {
	Group   uint16
	Element uint16
}

// String returns the tag in (gggg,eeee) format.
func (t Tag) String() string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Command set tags (group 0000, DICOM PS3.7 Section 9.3).
var (
	TagCommandGroupLength        = Tag{Group: 0x0000, Element: 0x0000}
	TagAffectedSOPClassUID       = Tag{Group: 0x0000, Element: 0x0002}
	TagRequestedSOPClassUID      = Tag{Group: 0x0000, Element: 0x0003}
	TagCommandField              = Tag{Group: 0x0000, Element: 0x0100}
	TagMessageID                 = Tag{Group: 0x0000, Element: 0x0110}
	TagMessageIDBeingRespondedTo = Tag{Group: 0x0000, Element: 0x0120}
	TagMoveDestination           = Tag{Group: 0x0000, Element: 0x0600}
	TagPriority                  = Tag{Group: 0x0000, Element: 0x0700}
	TagCommandDataSetType        = Tag{Group: 0x0000, Element: 0x0800}
	TagStatus                    = Tag{Group: 0x0000, Element: 0x0900}
	TagAffectedSOPInstanceUID    = Tag{Group: 0x0000, Element: 0x1000}
)
