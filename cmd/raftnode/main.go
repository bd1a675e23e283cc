// Command raftnode runs one member of a raft cluster: the consensus
// engine, its gRPC transport, and an admin HTTP surface for status and
// key/value operations.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/mossraft/raftcore/internal/adminapi"
	"github.com/mossraft/raftcore/internal/node"
	"github.com/mossraft/raftcore/internal/raftserver"
	"github.com/mossraft/raftcore/raft"
)

func uintToNodeID(id uint32) raft.NodeID { return raft.NodeID(id) }

// clusterFile is the yaml.v2 bootstrap config format: this node's own
// settings under "self", plus one entry per other member under "peers".
type clusterFile struct {
	Self struct {
		ID       uint32 `yaml:"id"`
		DataDir  string `yaml:"dataDir"`
		RaftAddr string `yaml:"raftAddr"`
		HTTPAddr string `yaml:"httpAddr"`
	} `yaml:"self"`
	Peers []struct {
		ID     uint32 `yaml:"id"`
		Addr   string `yaml:"addr"`
		Voting bool   `yaml:"voting"`
	} `yaml:"peers"`
	ElectionTimeoutMS int `yaml:"electionTimeoutMs"`
	RequestTimeoutMS  int `yaml:"requestTimeoutMs"`
}

func loadClusterFile(path string) (*clusterFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cf := &clusterFile{ElectionTimeoutMS: 150, RequestTimeoutMS: 50}
	if err := yaml.Unmarshal(raw, cf); err != nil {
		return nil, err
	}
	return cf, nil
}

func main() {
	configPath := flag.String("config", "cluster.yaml", "path to the cluster bootstrap config")
	logLevel := flag.String("log-level", "info", "zerolog level: trace, debug, info, warn, error")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", *logLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cf, err := loadClusterFile(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load cluster config")
	}

	if err := os.MkdirAll(cf.Self.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dataDir", cf.Self.DataDir).Msg("failed to create data directory")
	}

	peers := make([]node.PeerConfig, 0, len(cf.Peers))
	for _, p := range cf.Peers {
		peers = append(peers, node.PeerConfig{ID: uintToNodeID(p.ID), Addr: p.Addr, Voting: p.Voting})
	}

	n, err := node.New(node.Config{
		SelfID:            uintToNodeID(cf.Self.ID),
		DataDir:           cf.Self.DataDir,
		TermFile:          filepath.Join(cf.Self.DataDir, "term.pb"),
		LogFile:           filepath.Join(cf.Self.DataDir, "log.pb"),
		Peers:             peers,
		ElectionTimeoutMS: cf.ElectionTimeoutMS,
		RequestTimeoutMS:  cf.RequestTimeoutMS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct node")
	}

	rs, err := raftserver.Start(cf.Self.RaftAddr, n)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start raft transport")
	}

	httpSrv := &http.Server{Addr: cf.Self.HTTPAddr, Handler: adminapi.New(n)}
	go func() {
		log.Info().Str("addr", cf.Self.HTTPAddr).Msg("admin API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin API stopped serving")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	cancel()
	rs.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
