package client

import (
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/dimse"
	"github.com/kimsuk/fo-dicom/pdu"
	"github.com/kimsuk/fo-dicom/services"
	"github.com/kimsuk/fo-dicom/types"
)

// dimseBridge adapts a dimse.Service to the pdu.DIMSEHandler interface.
type dimseBridge struct {
	svc *dimse.Service
}

func (b *dimseBridge) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, pduLayer *pdu.Layer) error {
	return b.svc.HandleDIMSEMessage(presContextID, msgCtrlHeader, data, pduLayer)
}

// startAcceptor runs a full acceptor stack on one end of a pipe.
func startAcceptor(t *testing.T, policy pdu.AcceptorPolicy) net.Conn {
	t.Helper()

	clientConn, serverConn := net.Pipe()

	registry := services.NewRegistry(zerolog.Nop())
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService(zerolog.Nop()))
	svc := dimse.NewService(registry, zerolog.Nop())
	layer := pdu.NewLayer(serverConn, &dimseBridge{svc: svc}, policy, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		layer.HandleConnection()
	}()
	t.Cleanup(func() {
		clientConn.Close()
		<-done
	})

	return clientConn
}

func TestLoopback_CEcho(t *testing.T) {
	conn := startAcceptor(t, pdu.DefaultAcceptorPolicy("TEST-SCP"))

	assoc, err := NewAssociation(conn, Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "TEST-SCP",
	})
	require.NoError(t, err)

	// The default acceptor supports every proposed context.
	for _, pc := range assoc.PresentationContexts() {
		assert.Equal(t, types.ResultAccept, pc.Result(), "context %d (%s)", pc.ID(), pc.AbstractSyntax())
	}

	rsp, err := assoc.SendCEcho(42)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, rsp.Status)
	assert.Equal(t, uint16(42), rsp.MessageID)

	require.NoError(t, assoc.Close())
}

func TestLoopback_CalledAETitleRejected(t *testing.T) {
	policy := pdu.DefaultAcceptorPolicy("RIGHT-SCP")
	policy.RequireCalledAETitle = true
	conn := startAcceptor(t, policy)

	_, err := NewAssociation(conn, Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "WRONG-SCP",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dicomerr.ErrAssociationRejected)

	var assocErr *dicomerr.AssociationError
	require.ErrorAs(t, err, &assocErr)
	assert.Equal(t, dicomerr.RejectReasonCalledAETitleNotRecognized, assocErr.Reason)
}

func TestLoopback_ContextNegotiation(t *testing.T) {
	conn := startAcceptor(t, pdu.DefaultAcceptorPolicy("TEST-SCP"))

	supported := types.NewPresentationContext(1, types.VerificationSOPClass)
	supported.AddTransferSyntax(types.ExplicitVRLittleEndian)
	supported.AddTransferSyntax(types.ImplicitVRLittleEndian)

	unknownClass := types.NewPresentationContext(3, "1.2.826.0.1.3680043.9.9999.77")
	unknownClass.AddTransferSyntax(types.ImplicitVRLittleEndian)

	compressedOnly := types.NewPresentationContext(5, types.CTImageStorage)
	compressedOnly.AddTransferSyntax(types.JPEGBaseline8Bit)

	assoc, err := NewAssociation(conn, Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "TEST-SCP",
		PresentationContexts: []*types.PresentationContext{
			supported, unknownClass, compressedOnly,
		},
	})
	require.NoError(t, err)

	pc, ok := assoc.PresentationContext(1)
	require.True(t, ok)
	assert.Equal(t, types.ResultAccept, pc.Result())
	assert.Equal(t, types.ExplicitVRLittleEndian, pc.AcceptedTransferSyntax())

	pc, ok = assoc.PresentationContext(3)
	require.True(t, ok)
	assert.Equal(t, types.ResultRejectAbstractSyntaxNotSupported, pc.Result())

	pc, ok = assoc.PresentationContext(5)
	require.True(t, ok)
	assert.Equal(t, types.ResultRejectTransferSyntaxesNotSupported, pc.Result())

	require.NoError(t, assoc.Close())
}

func TestLoopback_SCPPriorityOrder(t *testing.T) {
	policy := pdu.DefaultAcceptorPolicy("TEST-SCP")
	policy.TransferSyntaxes = []string{types.ImplicitVRLittleEndian, types.ExplicitVRLittleEndian}
	policy.SCPPriority = true
	conn := startAcceptor(t, policy)

	// The proposer prefers explicit VR but the acceptor's order wins.
	assoc, err := NewAssociation(conn, Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "TEST-SCP",
		AbstractSyntaxes: []string{
			types.VerificationSOPClass,
		},
	})
	require.NoError(t, err)

	pc, ok := assoc.PresentationContext(1)
	require.True(t, ok)
	assert.Equal(t, types.ResultAccept, pc.Result())
	assert.Equal(t, types.ImplicitVRLittleEndian, pc.AcceptedTransferSyntax())

	require.NoError(t, assoc.Close())
}

func TestLoopback_Abort(t *testing.T) {
	conn := startAcceptor(t, pdu.DefaultAcceptorPolicy("TEST-SCP"))

	assoc, err := NewAssociation(conn, Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "TEST-SCP",
	})
	require.NoError(t, err)

	require.NoError(t, assoc.Abort())
}
