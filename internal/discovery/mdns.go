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
Package discovery finds other RaftKV nodes on the local network segment
via mDNS (Bonjour/Avahi), for the optional DiscoverLAN startup path. It
is never consulted after startup — membership for an already-running
cluster comes from config.Config.Peers, not from discovery.
*/
package discovery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"raftkv/internal/logging"
)

var log = logging.NewLogger("discovery")

const serviceName = "_raftkv._tcp"

// Peer is a node found on the network during discovery.
type Peer struct {
	NodeID string
	Addr   string // host:port, dialable as a raft transport address
}

// Advertiser announces this node's presence over mDNS for the lifetime
// of the process, so other nodes can find it during their own startup
// discovery.
type Advertiser struct {
	server *mdns.Server
}

// Advertise starts broadcasting nodeID and bindAddr over mDNS. Callers
// should Shutdown the returned Advertiser on process exit.
func Advertise(nodeID, bindAddr string) (*Advertiser, error) {
	host, portStr, err := splitHostPort(bindAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing bind address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing bind port: %w", err)
	}

	info := []string{"node_id=" + nodeID}
	svc, err := mdns.NewMDNSService(nodeID, serviceName, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("building mdns service record: %w", err)
	}
	if host != "" {
		svc.HostName = host + "."
	}

	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("starting mdns server: %w", err)
	}

	log.Info("advertising over mdns", "node", nodeID, "addr", bindAddr)
	return &Advertiser{server: srv}, nil
}

// Shutdown stops advertising.
func (a *Advertiser) Shutdown() error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Discover searches the LAN for other RaftKV nodes for up to timeout
// and returns whatever peers answered in time. It never errors on zero
// results — an empty LAN is an ordinary, non-fatal outcome for a node
// that already has static peers configured.
func Discover(timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})
	var found []Peer

	go func() {
		defer close(done)
		for e := range entries {
			found = append(found, entryToPeer(e))
		}
	}()

	params := mdns.DefaultParams(serviceName)
	params.Timeout = timeout
	params.Entries = entries

	if err := mdns.Query(params); err != nil {
		close(entries)
		<-done
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	close(entries)
	<-done

	log.Info("lan discovery complete", "found", strconv.Itoa(len(found)))
	return found, nil
}

func entryToPeer(e *mdns.ServiceEntry) Peer {
	nodeID := e.Name
	for _, field := range e.InfoFields {
		if strings.HasPrefix(field, "node_id=") {
			nodeID = strings.TrimPrefix(field, "node_id=")
		}
	}
	addr := e.Addr.String()
	if addr == "" || addr == "<nil>" {
		addr = e.Host
	}
	return Peer{
		NodeID: nodeID,
		Addr:   fmt.Sprintf("%s:%d", addr, e.Port),
	}
}

func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("missing port in %q", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}
