package a2akit

import (
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/hupe1980/a2amesh/logging"
)

// Well-known agent card paths.
const (
	AgentCardPath       = a2asrv.WellKnownAgentCardPath
	LegacyAgentCardPath = "/.well-known/agent.json"
	V1CardPath          = "/v1/card"
)

// ProtocolVersion is advertised by cards that name none.
const ProtocolVersion = "0.3.0"

// ServerOptions configures a Server.
type ServerOptions struct {
	// TaskStore persists tasks; nil keeps them in memory.
	TaskStore a2asrv.TaskStore
	Logger    logging.Logger
	// HandlerOptions are passed to a2asrv.NewHandler after the defaults.
	HandlerOptions []a2asrv.RequestHandlerOption
}

// Server exposes an AgentExecutor over A2A JSON-RPC. It implements http.Handler.
type Server struct {
	card    a2a.AgentCard
	handler a2asrv.RequestHandler
	mux     *http.ServeMux
}

// NewServer creates a Server for card backed by executor.
func NewServer(card a2a.AgentCard, executor a2asrv.AgentExecutor, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if card.ProtocolVersion == "" {
		card.ProtocolVersion = ProtocolVersion
	}

	if card.PreferredTransport == "" {
		card.PreferredTransport = a2a.TransportProtocolJSONRPC
	}

	handlerOpts := []a2asrv.RequestHandlerOption{a2asrv.WithLogger(logging.ToSlog(opts.Logger))}
	if opts.TaskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(opts.TaskStore))
	}
	handlerOpts = append(handlerOpts, opts.HandlerOptions...)

	s := &Server{
		card:    card,
		handler: a2asrv.NewHandler(executor, handlerOpts...),
		mux:     http.NewServeMux(),
	}

	cardHandler := a2asrv.NewStaticAgentCardHandler(&s.card)
	for _, path := range []string{AgentCardPath, LegacyAgentCardPath, V1CardPath} {
		s.mux.Handle(path, cardHandler)
	}

	s.mux.Handle("POST /{$}", a2asrv.NewJSONRPCHandler(s.handler))

	return s
}

// Card returns the served agent card.
func (s *Server) Card() a2a.AgentCard { return s.card }

// Handler returns the transport-agnostic request handler.
func (s *Server) Handler() a2asrv.RequestHandler { return s.handler }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
