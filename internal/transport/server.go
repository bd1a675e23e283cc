package transport

import (
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// StartServer registers h against a fresh grpc.Server and starts serving on
// lis in the background. raftserver.Start wraps it with the listener setup.
func StartServer(lis net.Listener, h Handler) *grpc.Server {
	s := grpc.NewServer()
	s.RegisterService(&ServiceDesc, h)
	go func() {
		if err := s.Serve(lis); err != nil {
			log.Error().Err(err).Msg("raft transport server stopped serving")
		}
	}()
	return s
}
