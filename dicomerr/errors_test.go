package dicomerr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociationError(t *testing.T) {
	err := NewAssociationError(
		RejectResultPermanent,
		RejectSourceServiceUser,
		RejectReasonCalledAETitleNotRecognized,
		"AE title mismatch",
	)

	assert.Equal(t, RejectResultPermanent, err.Result)
	assert.Equal(t, RejectSourceServiceUser, err.Source)
	assert.Equal(t, RejectReasonCalledAETitleNotRecognized, err.Reason)
	assert.Contains(t, err.Error(), "AE title mismatch")
	assert.Contains(t, err.Error(), "called-ae-title-not-recognized")
}

func TestAssociationError_MatchesSentinel(t *testing.T) {
	err := NewAssociationError(
		RejectResultTransient,
		RejectSourceServiceProvider,
		RejectReasonNoReasonGiven,
		"busy",
	)

	assert.ErrorIs(t, err, ErrAssociationRejected)

	var assocErr *AssociationError
	require.ErrorAs(t, err, &assocErr)
	assert.Equal(t, RejectResultTransient, assocErr.Result)
}

func TestDIMSEError(t *testing.T) {
	tests := []struct {
		name      string
		status    uint16
		isSuccess bool
		isPending bool
		isWarning bool
		isFailure bool
	}{
		{"Success", 0x0000, true, false, false, false},
		{"Pending", 0xFF00, false, true, false, false},
		{"Warning", 0x0107, false, false, true, false},
		{"Failure", 0xC000, false, false, false, true},
		{"Refused", 0xA700, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDIMSEError("C-ECHO", tt.status, "test error")

			assert.Equal(t, tt.isSuccess, err.IsSuccess())
			assert.Equal(t, tt.isPending, err.IsPending())
			assert.Equal(t, tt.isWarning, err.IsWarning())
			assert.Equal(t, tt.isFailure, err.IsFailure())
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("connection", 30*time.Second)

	assert.Equal(t, "connection", err.Operation)
	assert.True(t, err.Timeout())
	assert.Contains(t, err.Error(), "30s")
}

func TestNetworkError(t *testing.T) {
	innerErr := errors.New("connection refused")
	err := NewNetworkError("dial", innerErr)

	assert.Equal(t, "dial", err.Op)
	assert.ErrorIs(t, err, innerErr)
}

func TestPDUError(t *testing.T) {
	err := NewPDUError(0x04, "invalid PDU length")

	assert.Equal(t, byte(0x04), err.PDUType)
	assert.ErrorIs(t, err, ErrInvalidPDU)
	assert.Contains(t, err.Error(), "invalid PDU length")
}

func TestAbortError(t *testing.T) {
	err := NewAbortError(AbortSourceServiceProvider, AbortReasonUnexpectedPDU)

	assert.Equal(t, AbortSourceServiceProvider, err.Source)
	assert.Equal(t, AbortReasonUnexpectedPDU, err.Reason)
	assert.Contains(t, err.Error(), "service-provider")
}

func TestAssociationRejectResultString(t *testing.T) {
	tests := []struct {
		result   AssociationRejectResult
		expected string
	}{
		{RejectResultPermanent, "rejected-permanent"},
		{RejectResultTransient, "rejected-transient"},
		{AssociationRejectResult(0xFF), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.String())
		})
	}
}

func TestAssociationRejectReasonString(t *testing.T) {
	tests := []struct {
		reason   AssociationRejectReason
		expected string
	}{
		{RejectReasonNoReasonGiven, "no-reason-given"},
		{RejectReasonApplicationContextNotSupported, "application-context-not-supported"},
		{RejectReasonCallingAETitleNotRecognized, "calling-ae-title-not-recognized"},
		{RejectReasonCalledAETitleNotRecognized, "called-ae-title-not-recognized"},
		{AssociationRejectReason(0xFF), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestAssociationRejectSourceString(t *testing.T) {
	tests := []struct {
		source   AssociationRejectSource
		expected string
	}{
		{RejectSourceServiceUser, "service-user"},
		{RejectSourceServiceProvider, "service-provider"},
		{AssociationRejectSource(0xFF), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.source.String())
		})
	}
}
