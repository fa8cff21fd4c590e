/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
raftnode runs a single RaftKV cluster member: it loads a node config,
starts the Raft core's three drivers (Election, Replication, Apply),
and binds the RPC Service for peer and client traffic.
*/
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raftkv/internal/config"
	"raftkv/internal/discovery"
	"raftkv/internal/durablestore"
	"raftkv/internal/logging"
	"raftkv/internal/raft"
	"raftkv/internal/statemachine"
	"raftkv/internal/transport"
	"raftkv/pkg/cli"
)

var log = logging.NewLogger("raftnode")

func main() {
	configPath := flag.String("config", "", "Path to a node config JSON file")
	initConfig := flag.String("init-config", "", "Write a default config to this path and exit")
	interactive := flag.Bool("interactive", false, "Prompt for node identity when used with -init-config")
	discoverLAN := flag.Bool("discover", false, "Discover peers over mDNS before starting")
	flag.Parse()

	if *initConfig != "" {
		if err := writeDefaultConfig(*initConfig, *interactive); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default config to %s\n", *initConfig)
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: raftnode -config <path> [-discover]")
		os.Exit(1)
	}

	if _, err := os.Stat(*configPath); err != nil {
		cli.ErrConfigNotFound(*configPath).Print()
		os.Exit(1)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)

	if *discoverLAN || cfg.DiscoverLAN {
		discovered, err := discovery.Discover(5 * time.Second)
		if err != nil {
			log.Warn("lan discovery failed", "error", err.Error())
		}
		for _, p := range discovered {
			if _, known := cfg.Peers[p.NodeID]; known && p.NodeID != cfg.NodeID {
				cfg.Peers[p.NodeID] = p.Addr
			}
		}
	}

	if err := run(cfg); err != nil {
		log.Error("node exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := durablestore.Open(cfg.NodeID, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening durable store: %w", err)
	}
	sm := statemachine.New(cfg.NodeID, cfg.DataDir)

	peerIDs := make([]string, 0, len(cfg.Peers))
	for id := range cfg.Peers {
		peerIDs = append(peerIDs, id)
	}

	algo, err := transport.ParseAlgorithm(string(cfg.Compression))
	if err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled {
		tlsConfig, err = transport.LoadTLSConfig(certPath(cfg), keyPath(cfg))
		if err != nil {
			cli.ErrTLSConfig(certPath(cfg), keyPath(cfg), err).Print()
			return err
		}
	}

	peerAddrs := make(map[string]string, len(cfg.Peers))
	for id, addr := range cfg.Peers {
		peerAddrs[id] = addr
	}
	peers, err := transport.NewPeers(transport.PeersConfig{
		Addresses:     peerAddrs,
		ClusterSecret: cfg.ClusterSecret,
		Compression:   algo,
		TLSConfig:     tlsConfig,
	})
	if err != nil {
		return fmt.Errorf("building peer directory: %w", err)
	}

	node, err := raft.NewNode(raft.Config{
		NodeID:        cfg.NodeID,
		Peers:         peerIDs,
		ElectionMin:   time.Duration(cfg.ElectionMinMS) * time.Millisecond,
		ElectionMax:   time.Duration(cfg.ElectionMaxMS) * time.Millisecond,
		HeartbeatTick: time.Duration(cfg.HeartbeatMS) * time.Millisecond,
		EnablePreVote: cfg.EnablePreVote,
	}, peers, store, sm)
	if err != nil {
		return fmt.Errorf("starting raft node: %w", err)
	}
	node.Start()
	defer node.Stop()

	srv, err := transport.NewServer(transport.ServerConfig{
		Node:          node,
		ClusterSecret: cfg.ClusterSecret,
		TLSConfig:     tlsConfig,
	})
	if err != nil {
		return fmt.Errorf("building rpc service: %w", err)
	}

	var advertiser *discovery.Advertiser
	if cfg.DiscoverLAN {
		advertiser, err = discovery.Advertise(cfg.NodeID, cfg.BindAddr)
		if err != nil {
			log.Warn("mdns advertise failed", "error", err.Error())
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(cfg.BindAddr) }()

	log.Info("raftnode started", "node", cfg.NodeID, "bind", cfg.BindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			log.Error("rpc service stopped", "error", err.Error())
		}
	}

	if advertiser != nil {
		advertiser.Shutdown()
	}
	srv.Close()
	return nil
}

// writeDefaultConfig writes a default Config to path. In interactive
// mode it prompts for the identity fields an operator can't sensibly
// default (NodeID, BindAddr) instead of leaving them blank for the
// operator to hand-edit afterward.
func writeDefaultConfig(path string, interactive bool) error {
	cfg := config.DefaultConfig()
	if interactive {
		cfg.NodeID = cli.PromptWithDefault("Node ID", "node-1")
		cfg.BindAddr = cli.PromptWithDefault("Bind address", "127.0.0.1:7000")
		if cli.PromptYesNo("Enable LAN discovery via mDNS?", false) {
			cfg.DiscoverLAN = true
		}
	}
	return cfg.SaveToFile(path)
}

func certPath(cfg *config.Config) string {
	return cfg.DataDir + "/node_" + cfg.NodeID + "_cert.pem"
}

func keyPath(cfg *config.Config) string {
	return cfg.DataDir + "/node_" + cfg.NodeID + "_key.pem"
}
