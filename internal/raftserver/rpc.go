// Package raftserver bundles the listening socket and grpc.Server for a
// node's raft transport, wrapping internal/transport's hand-written
// service descriptor and supporting a clean shutdown.
package raftserver

import (
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/mossraft/raftcore/internal/transport"
)

// Server is a running raft transport endpoint.
type Server struct {
	grpcServer *grpc.Server
	addr       string
}

// Start listens on addr and serves h's RequestVote/AppendEntries RPCs in
// the background. Note: addr must be in the form "host:port".
func Start(addr string, h transport.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("failed to bind raft transport listener")
		return nil, err
	}
	gs := transport.StartServer(lis, h)
	log.Info().Str("addr", addr).Msg("raft transport listening")
	return &Server{grpcServer: gs, addr: addr}, nil
}

// Stop gracefully shuts down the transport server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
	log.Info().Str("addr", s.addr).Msg("raft transport stopped")
}
