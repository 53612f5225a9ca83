package types

// DICOM Transfer Syntax UIDs as defined in DICOM Part 5, Section 8 and Part 6, Annex A.4
// https://dicom.nema.org/medical/dicom/current/output/chtml/part05/chapter_8.html

// Uncompressed Transfer Syntaxes
const (
	// ImplicitVRLittleEndian - Default Transfer Syntax for DICOM.
	// Every conforming implementation must support it.
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"

	// ExplicitVRLittleEndian - Explicit VR with little endian byte ordering.
	// Preferred for general use due to explicit data types.
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

	// ExplicitVRBigEndian - Explicit VR with big endian byte ordering (retired)
	ExplicitVRBigEndian = "1.2.840.10008.1.2.2"

	// DeflatedExplicitVRLittleEndian - zlib/deflate compression over explicit VR
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
)

// Compressed Transfer Syntaxes
const (
	// JPEGBaseline8Bit - JPEG Baseline (Process 1), lossy, 8-bit samples
	JPEGBaseline8Bit = "1.2.840.10008.1.2.4.50"

	// JPEGExtended12Bit - JPEG Extended (Process 2 & 4), lossy, 8-12 bit samples
	JPEGExtended12Bit = "1.2.840.10008.1.2.4.51"

	// JPEGLossless - JPEG Lossless (Process 14)
	JPEGLossless = "1.2.840.10008.1.2.4.57"

	// JPEGLosslessSV1 - JPEG Lossless (Process 14, Selection Value 1).
	// The most widely deployed lossless JPEG variant.
	JPEGLosslessSV1 = "1.2.840.10008.1.2.4.70"

	// JPEGLSLossless - JPEG-LS Lossless Image Compression
	JPEGLSLossless = "1.2.840.10008.1.2.4.80"

	// JPEGLSNearLossless - JPEG-LS Lossy (Near-Lossless) Image Compression
	JPEGLSNearLossless = "1.2.840.10008.1.2.4.81"

	// JPEG2000Lossless - JPEG 2000 Image Compression (Lossless Only)
	JPEG2000Lossless = "1.2.840.10008.1.2.4.90"

	// JPEG2000 - JPEG 2000 Image Compression (lossy or lossless)
	JPEG2000 = "1.2.840.10008.1.2.4.91"

	// RLELossless - RLE Lossless Compression
	RLELossless = "1.2.840.10008.1.2.5"
)

// TransferSyntaxInfo provides metadata about a transfer syntax.
type TransferSyntaxInfo struct {
	UID          string
	Name         string
	IsCompressed bool
	IsLossless   bool
	IsRetired    bool
}

// GetTransferSyntaxInfo returns information about a transfer syntax UID.
// Unknown UIDs yield a placeholder entry named "Unknown".
func GetTransferSyntaxInfo(uid string) *TransferSyntaxInfo {
	info, ok := transferSyntaxRegistry[uid]
	if !ok {
		return &TransferSyntaxInfo{
			UID:        uid,
			Name:       "Unknown",
			IsLossless: true,
		}
	}
	return &info
}

// IsKnownTransferSyntax reports whether uid is present in the transfer
// syntax registry.
func IsKnownTransferSyntax(uid string) bool {
	_, ok := transferSyntaxRegistry[uid]
	return ok
}

// IsCompressed returns true if the transfer syntax uses compression.
func IsCompressed(uid string) bool {
	return GetTransferSyntaxInfo(uid).IsCompressed
}

// IsLossless returns true if the transfer syntax is lossless.
// Uncompressed transfer syntaxes count as lossless.
func IsLossless(uid string) bool {
	return GetTransferSyntaxInfo(uid).IsLossless
}

// IsRetired returns true if the transfer syntax is retired.
func IsRetired(uid string) bool {
	return GetTransferSyntaxInfo(uid).IsRetired
}

var transferSyntaxRegistry = map[string]TransferSyntaxInfo{
	ImplicitVRLittleEndian: {
		UID:        ImplicitVRLittleEndian,
		Name:       "Implicit VR Little Endian",
		IsLossless: true,
	},
	ExplicitVRLittleEndian: {
		UID:        ExplicitVRLittleEndian,
		Name:       "Explicit VR Little Endian",
		IsLossless: true,
	},
	ExplicitVRBigEndian: {
		UID:        ExplicitVRBigEndian,
		Name:       "Explicit VR Big Endian",
		IsLossless: true,
		IsRetired:  true,
	},
	DeflatedExplicitVRLittleEndian: {
		UID:          DeflatedExplicitVRLittleEndian,
		Name:         "Deflated Explicit VR Little Endian",
		IsCompressed: true,
		IsLossless:   true,
	},
	JPEGBaseline8Bit: {
		UID:          JPEGBaseline8Bit,
		Name:         "JPEG Baseline (Process 1)",
		IsCompressed: true,
	},
	JPEGExtended12Bit: {
		UID:          JPEGExtended12Bit,
		Name:         "JPEG Extended (Process 2 & 4)",
		IsCompressed: true,
	},
	JPEGLossless: {
		UID:          JPEGLossless,
		Name:         "JPEG Lossless (Process 14)",
		IsCompressed: true,
		IsLossless:   true,
	},
	JPEGLosslessSV1: {
		UID:          JPEGLosslessSV1,
		Name:         "JPEG Lossless, Non-Hierarchical, First-Order Prediction",
		IsCompressed: true,
		IsLossless:   true,
	},
	JPEGLSLossless: {
		UID:          JPEGLSLossless,
		Name:         "JPEG-LS Lossless",
		IsCompressed: true,
		IsLossless:   true,
	},
	JPEGLSNearLossless: {
		UID:          JPEGLSNearLossless,
		Name:         "JPEG-LS Near-Lossless",
		IsCompressed: true,
	},
	JPEG2000Lossless: {
		UID:          JPEG2000Lossless,
		Name:         "JPEG 2000 Lossless Only",
		IsCompressed: true,
		IsLossless:   true,
	},
	JPEG2000: {
		UID:          JPEG2000,
		Name:         "JPEG 2000",
		IsCompressed: true,
	},
	RLELossless: {
		UID:          RLELossless,
		Name:         "RLE Lossless",
		IsCompressed: true,
		IsLossless:   true,
	},
}

// DefaultTransferSyntaxes returns the transfer syntaxes proposed and accepted
// when nothing else is configured, in negotiation preference order.
func DefaultTransferSyntaxes() []string {
	return []string{
		ExplicitVRLittleEndian,
		ImplicitVRLittleEndian,
	}
}
