package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mossraft/raftcore/raft"
)

// Client dials a single peer and issues RequestVote/AppendEntries RPCs
// against it, the networked half of raft.Capability's send callbacks.
type Client struct {
	target string
	conn   *grpc.ClientConn
}

// Dial opens (lazily, on first use) a connection to addr. Unlike the
// teacher's DialContext call, this does not block past the timeout; a
// server that's down yet is discovered on the first RPC attempt instead.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{target: addr, conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RequestVote issues a RequestVote RPC and blocks for at most timeout.
func (c *Client) RequestVote(timeout time.Duration, req *raft.RequestVoteRequest) (*raft.RequestVoteResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp := new(raft.RequestVoteResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/RequestVote", req, resp)
	if err != nil {
		log.Debug().Err(err).Str("peer", c.target).Msg("RequestVote RPC failed")
		return nil, err
	}
	return resp, nil
}

// AppendEntries issues an AppendEntries RPC and blocks for at most timeout.
func (c *Client) AppendEntries(timeout time.Duration, req *raft.AppendEntriesRequest) (*raft.AppendEntriesResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp := new(raft.AppendEntriesResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/AppendEntries", req, resp)
	if err != nil {
		log.Debug().Err(err).Str("peer", c.target).Msg("AppendEntries RPC failed")
		return nil, err
	}
	return resp, nil
}
