// Package server wires the PDU and DIMSE layers into a reusable DICOM
// listener.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/dimse"
	"github.com/kimsuk/fo-dicom/interfaces"
	"github.com/kimsuk/fo-dicom/observability"
	"github.com/kimsuk/fo-dicom/pdu"
	"github.com/kimsuk/fo-dicom/types"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithReadTimeout sets the idle read timeout for client connections.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

// WithMaxPDULength sets the maximum PDU length announced to peers.
func WithMaxPDULength(length uint32) Option {
	return func(s *Server) {
		s.maxPDULength = length
	}
}

// WithTransferSyntaxes sets the transfer syntaxes the server accepts, most
// preferred first.
func WithTransferSyntaxes(syntaxes []string) Option {
	return func(s *Server) {
		s.transferSyntaxes = syntaxes
	}
}

// WithSCPPriority makes the server's transfer syntax order win over the
// proposer's during negotiation.
func WithSCPPriority(enabled bool) Option {
	return func(s *Server) {
		s.scpPriority = enabled
	}
}

// WithRequireCalledAETitle rejects associations whose called AE title does
// not match the server's.
func WithRequireCalledAETitle(required bool) Option {
	return func(s *Server) {
		s.requireCalledAETitle = required
	}
}

// WithAcceptAbstractSyntax installs a per SOP class accept predicate.
func WithAcceptAbstractSyntax(accept func(uid string) bool) Option {
	return func(s *Server) {
		s.acceptAbstractSyntax = accept
	}
}

// WithImplementation sets the implementation identity announced to peers.
func WithImplementation(classUID, version string) Option {
	return func(s *Server) {
		s.implementationClassUID = classUID
		s.implementationVersion = version
	}
}

// WithMetrics enables Prometheus metrics for associations, negotiated
// contexts, DIMSE messages and open connections.
func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metricsEnabled = enabled
	}
}

// WithOnAssociation installs a hook invoked after each successful
// negotiation.
func WithOnAssociation(fn func(assoc *types.AssociationContext)) Option {
	return func(s *Server) {
		s.onAssociation = fn
	}
}

// Server exposes a reusable DICOM listener that wires the DIMSE and PDU
// layers.
type Server struct {
	AETitle      string
	Handler      interfaces.ServiceHandler
	Logger       zerolog.Logger
	ReadTimeout  time.Duration // idle read timeout per connection (default 60s)
	WriteTimeout time.Duration // write timeout per connection (default 60s)

	maxPDULength           uint32
	transferSyntaxes       []string
	scpPriority            bool
	requireCalledAETitle   bool
	acceptAbstractSyntax   func(uid string) bool
	implementationClassUID string
	implementationVersion  string
	metricsEnabled         bool
	onAssociation          func(assoc *types.AssociationContext)
}

// New builds a Server with the provided AE title and handler.
func New(aeTitle string, handler interfaces.ServiceHandler, opts ...Option) *Server {
	srv := &Server{AETitle: aeTitle, Handler: handler}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = 60 * time.Second
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = 60 * time.Second
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context
// is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, handler interfaces.ServiceHandler, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	defer listener.Close()

	srv := New(aeTitle, handler, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an
// unrecoverable error occurs. Connections still open when ctx is cancelled
// are closed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil {
		return errors.New("server: server is nil")
	}
	if listener == nil {
		return errors.New("server: listener is required")
	}
	if s.Handler == nil {
		return errors.New("server: handler is required")
	}
	if s.AETitle == "" {
		return errors.New("server: AE title is required")
	}

	s.Logger.Info().
		Stringer("address", listener.Addr()).
		Str("ae_title", s.AETitle).
		Msg("DICOM server listening")

	// Unblock Accept when the context ends.
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					s.Logger.Warn().Err(err).Msg("accept timeout")
					continue
				}
				return err
			}

			g.Go(func() error {
				s.handleConnection(gctx, conn)
				return nil
			})
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	s.Logger.Info().
		Stringer("remote_addr", conn.RemoteAddr()).
		Msg("accepted DICOM connection")

	if s.metricsEnabled {
		observability.ConnectionOpened(s.AETitle)
		defer observability.ConnectionClosed(s.AETitle)
	}

	// Close the connection when the server shuts down so the PDU loop
	// unblocks.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	handler := s.Handler
	if s.metricsEnabled {
		handler = &countingHandler{inner: handler, aeTitle: s.AETitle}
	}

	service := dimse.NewService(handler, s.Logger)
	layer := pdu.NewLayer(s.timeoutConn(conn), &dimseHandlerAdapter{service: service}, s.acceptorPolicy(), s.Logger)

	err := layer.HandleConnection()
	switch {
	case err == nil:
		s.Logger.Info().
			Stringer("remote_addr", conn.RemoteAddr()).
			Msg("DICOM connection closed")
	case ctx.Err() != nil:
		s.Logger.Info().
			Stringer("remote_addr", conn.RemoteAddr()).
			Msg("DICOM connection closed during shutdown")
	default:
		if s.metricsEnabled {
			if errors.Is(err, dicomerr.ErrAssociationRejected) {
				observability.RecordAssociation(s.AETitle, observability.OutcomeRejected)
			} else {
				observability.RecordAssociation(s.AETitle, observability.OutcomeFailed)
			}
		}
		s.Logger.Warn().
			Err(err).
			Stringer("remote_addr", conn.RemoteAddr()).
			Msg("DICOM connection ended")
	}
}

// acceptorPolicy translates the server configuration into the PDU layer's
// negotiation policy.
func (s *Server) acceptorPolicy() pdu.AcceptorPolicy {
	policy := pdu.DefaultAcceptorPolicy(s.AETitle)
	policy.RequireCalledAETitle = s.requireCalledAETitle
	policy.SCPPriority = s.scpPriority
	if len(s.transferSyntaxes) > 0 {
		policy.TransferSyntaxes = s.transferSyntaxes
	}
	if s.acceptAbstractSyntax != nil {
		policy.AcceptAbstractSyntax = s.acceptAbstractSyntax
	}
	if s.maxPDULength > 0 {
		policy.MaxPDULength = s.maxPDULength
	}
	if s.implementationClassUID != "" {
		policy.ImplementationClassUID = s.implementationClassUID
	}
	if s.implementationVersion != "" {
		policy.ImplementationVersion = s.implementationVersion
	}

	policy.OnAssociation = func(assoc *types.AssociationContext) {
		if s.metricsEnabled {
			observability.RecordAssociation(s.AETitle, observability.OutcomeEstablished)
			for _, id := range assoc.ContextIDs() {
				pc, _ := assoc.PresentationContext(id)
				observability.RecordPresentationContext(s.AETitle, pc.Result().String())
			}
		}
		if s.onAssociation != nil {
			s.onAssociation(assoc)
		}
	}

	return policy
}

// timeoutConn wraps the connection so every read and write refreshes its
// deadline, giving idle timeout semantics instead of a fixed connection
// lifetime.
func (s *Server) timeoutConn(conn net.Conn) net.Conn {
	if s.ReadTimeout <= 0 && s.WriteTimeout <= 0 {
		return conn
	}
	return &idleTimeoutConn{Conn: conn, readTimeout: s.ReadTimeout, writeTimeout: s.WriteTimeout}
}

type idleTimeoutConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *idleTimeoutConn) Read(b []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *idleTimeoutConn) Write(b []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// countingHandler records a metric per DIMSE request before delegating.
type countingHandler struct {
	inner   interfaces.ServiceHandler
	aeTitle string
}

func (h *countingHandler) HandleDIMSE(ctx context.Context, mctx *interfaces.MessageContext, msg *types.Message, data []byte) (*types.Message, []byte, error) {
	observability.RecordDIMSEMessage(h.aeTitle, types.CommandName(msg.CommandField))
	return h.inner.HandleDIMSE(ctx, mctx, msg, data)
}

func (h *countingHandler) HandleDIMSEStreaming(ctx context.Context, mctx *interfaces.MessageContext, msg *types.Message, data []byte, responder interfaces.ResponseSender) error {
	observability.RecordDIMSEMessage(h.aeTitle, types.CommandName(msg.CommandField))

	if streaming, ok := h.inner.(interfaces.StreamingServiceHandler); ok {
		return streaming.HandleDIMSEStreaming(ctx, mctx, msg, data, responder)
	}

	rsp, rspData, err := h.inner.HandleDIMSE(ctx, mctx, msg, data)
	if err != nil {
		return err
	}
	if rsp == nil {
		return nil
	}
	return responder.SendResponse(rsp, rspData)
}

type dimseHandlerAdapter struct {
	service *dimse.Service
}

func (a *dimseHandlerAdapter) HandleDIMSEMessage(presContextID byte, msgCtrlHeader byte, data []byte, layer *pdu.Layer) error {
	return a.service.HandleDIMSEMessage(presContextID, msgCtrlHeader, data, layer)
}
