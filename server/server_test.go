package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimsuk/fo-dicom/client"
	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/services"
	"github.com/kimsuk/fo-dicom/types"
)

func echoRegistry() *services.Registry {
	registry := services.NewRegistry(zerolog.Nop())
	registry.RegisterHandler(types.CEchoRQ, services.NewEchoService(zerolog.Nop()))
	return registry
}

// startServer runs srv on an ephemeral port and returns its address.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	return listener.Addr().String()
}

func TestNew_Defaults(t *testing.T) {
	srv := New("TEST-SCP", echoRegistry())

	assert.Equal(t, "TEST-SCP", srv.AETitle)
	assert.Equal(t, 60*time.Second, srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.WriteTimeout)
}

func TestNew_OptionsFlowIntoPolicy(t *testing.T) {
	accept := func(uid string) bool { return uid == types.VerificationSOPClass }
	srv := New("TEST-SCP", echoRegistry(),
		WithReadTimeout(5*time.Second),
		WithWriteTimeout(10*time.Second),
		WithMaxPDULength(32768),
		WithTransferSyntaxes([]string{types.ImplicitVRLittleEndian}),
		WithSCPPriority(true),
		WithRequireCalledAETitle(true),
		WithAcceptAbstractSyntax(accept),
		WithImplementation("1.2.3.4", "TEST_V1"),
	)

	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.WriteTimeout)

	policy := srv.acceptorPolicy()
	assert.Equal(t, "TEST-SCP", policy.AETitle)
	assert.Equal(t, uint32(32768), policy.MaxPDULength)
	assert.Equal(t, []string{types.ImplicitVRLittleEndian}, policy.TransferSyntaxes)
	assert.True(t, policy.SCPPriority)
	assert.True(t, policy.RequireCalledAETitle)
	assert.Equal(t, "1.2.3.4", policy.ImplementationClassUID)
	assert.Equal(t, "TEST_V1", policy.ImplementationVersion)
	assert.True(t, policy.AcceptAbstractSyntax(types.VerificationSOPClass))
	assert.False(t, policy.AcceptAbstractSyntax(types.CTImageStorage))
	assert.NotNil(t, policy.OnAssociation)
}

func TestServe_Validation(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	err = New("TEST-SCP", echoRegistry()).Serve(context.Background(), nil)
	assert.ErrorContains(t, err, "listener")

	err = New("TEST-SCP", nil).Serve(context.Background(), listener)
	assert.ErrorContains(t, err, "handler")

	err = New("", echoRegistry()).Serve(context.Background(), listener)
	assert.ErrorContains(t, err, "AE title")
}

func TestServe_CEchoEndToEnd(t *testing.T) {
	srv := New("E2E-SCP", echoRegistry(), WithLogger(zerolog.Nop()))
	address := startServer(t, srv)

	assoc, err := client.Connect(address, client.Config{
		CallingAETitle: "E2E-SCU",
		CalledAETitle:  "E2E-SCP",
	})
	require.NoError(t, err)

	rsp, err := assoc.SendCEcho(11)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, rsp.Status)
	assert.Equal(t, uint16(11), rsp.MessageID)

	require.NoError(t, assoc.Close())
}

func TestServe_OnAssociationHook(t *testing.T) {
	assocCh := make(chan *types.AssociationContext, 1)
	srv := New("HOOK-SCP", echoRegistry(),
		WithLogger(zerolog.Nop()),
		WithOnAssociation(func(assoc *types.AssociationContext) {
			assocCh <- assoc
		}),
	)
	address := startServer(t, srv)

	assoc, err := client.Connect(address, client.Config{
		CallingAETitle: "HOOK-SCU",
		CalledAETitle:  "HOOK-SCP",
	})
	require.NoError(t, err)
	defer assoc.Close()

	select {
	case negotiated := <-assocCh:
		assert.Equal(t, "HOOK-SCU", negotiated.CallingAETitle)
		assert.Equal(t, "HOOK-SCP", negotiated.CalledAETitle)
		assert.NotEmpty(t, negotiated.ID)
		assert.NotEmpty(t, negotiated.AcceptedPresentationContexts())
	case <-time.After(5 * time.Second):
		t.Fatal("association hook never fired")
	}
}

func TestServe_RequireCalledAETitle(t *testing.T) {
	srv := New("STRICT-SCP", echoRegistry(),
		WithLogger(zerolog.Nop()),
		WithRequireCalledAETitle(true),
	)
	address := startServer(t, srv)

	_, err := client.Connect(address, client.Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "SOMEONE-ELSE",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dicomerr.ErrAssociationRejected)

	// The listener survives a rejected association.
	assoc, err := client.Connect(address, client.Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "STRICT-SCP",
	})
	require.NoError(t, err)
	require.NoError(t, assoc.Close())
}

func TestServe_AcceptAbstractSyntaxPredicate(t *testing.T) {
	srv := New("NARROW-SCP", echoRegistry(),
		WithLogger(zerolog.Nop()),
		WithAcceptAbstractSyntax(func(uid string) bool {
			return uid == types.VerificationSOPClass
		}),
	)
	address := startServer(t, srv)

	assoc, err := client.Connect(address, client.Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "NARROW-SCP",
	})
	require.NoError(t, err)
	defer assoc.Close()

	// Only the verification context survives negotiation.
	accepted := 0
	for _, pc := range assoc.PresentationContexts() {
		if pc.Result() == types.ResultAccept {
			accepted++
			assert.Equal(t, types.VerificationSOPClass, pc.AbstractSyntax())
		} else {
			assert.Equal(t, types.ResultRejectAbstractSyntaxNotSupported, pc.Result())
		}
	}
	assert.Equal(t, 1, accepted)

	rsp, err := assoc.SendCEcho(3)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, rsp.Status)
}

func TestServe_MetricsRecorded(t *testing.T) {
	srv := New("METRICS-E2E-SCP", echoRegistry(),
		WithLogger(zerolog.Nop()),
		WithMetrics(true),
	)
	address := startServer(t, srv)

	assoc, err := client.Connect(address, client.Config{
		CallingAETitle: "TEST-SCU",
		CalledAETitle:  "METRICS-E2E-SCP",
	})
	require.NoError(t, err)

	_, err = assoc.SendCEcho(1)
	require.NoError(t, err)
	require.NoError(t, assoc.Close())

	established := counterValue(t, "dicom_server_associations_total", map[string]string{
		"ae_title": "METRICS-E2E-SCP",
		"outcome":  "established",
	})
	assert.GreaterOrEqual(t, established, float64(1))

	echoes := counterValue(t, "dicom_server_dimse_messages_total", map[string]string{
		"ae_title": "METRICS-E2E-SCP",
		"command":  "C-ECHO-RQ",
	})
	assert.GreaterOrEqual(t, echoes, float64(1))

	accepts := counterValue(t, "dicom_server_presentation_contexts_total", map[string]string{
		"ae_title": "METRICS-E2E-SCP",
		"result":   types.ResultAccept.String(),
	})
	assert.GreaterOrEqual(t, accepts, float64(1))
}

// counterValue reads a counter from the default registry, 0 when the series
// does not exist.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, label := range metric.GetLabel() {
				if want, ok := labels[label.GetName()]; ok && want == label.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
