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
raftkv-discover finds RaftKV nodes on the local network segment using
mDNS. It is useful when bootstrapping a new node's peer list without
typing out every address by hand.

Usage:
    raftkv-discover                  # discover nodes (5 second timeout)
    raftkv-discover --timeout 10     # custom timeout in seconds
    raftkv-discover --json           # output as JSON
    raftkv-discover --quiet          # only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"raftkv/internal/discovery"
	"raftkv/pkg/cli"
)

const version = "1.0.0"

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output node addresses (for scripting)")
	help := flag.Bool("help", false, "Show help")
	flag.BoolVar(help, "h", false, "Show help")
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	// The mdns library logs IPv6-related noise at the standard logger;
	// discard it so it doesn't pollute --quiet output.
	log.SetOutput(io.Discard)

	if !*quiet && !*jsonOutput {
		fmt.Printf("%sScanning for RaftKV nodes on the network (timeout: %ds)...%s\n\n",
			cli.Cyan, *timeout, cli.Reset)
	}

	peers, err := discovery.Discover(time.Duration(*timeout) * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sDiscovery failed: %v%s\n", cli.Red, err, cli.Reset)
		os.Exit(1)
	}

	if len(peers) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%sNo RaftKV nodes found on the network.%s\n", cli.Yellow, cli.Reset)
		}
		os.Exit(0)
	}

	switch {
	case *jsonOutput:
		outputJSON(peers)
	case *quiet:
		outputQuiet(peers)
	default:
		outputHuman(peers)
	}
}

func outputJSON(peers []discovery.Peer) {
	data, _ := json.MarshalIndent(peers, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(peers []discovery.Peer) {
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.Addr
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(peers []discovery.Peer) {
	fmt.Printf("%sFound %d RaftKV node(s)%s\n\n", cli.Green, len(peers), cli.Reset)
	for i, p := range peers {
		fmt.Printf("  [%d] %s%s%s at %s\n", i+1, cli.Bold, p.NodeID, cli.Reset, p.Addr)
	}
	fmt.Println()
}

func printUsage() {
	h := cli.NewHelpFormatter("raftkv-discover", version, "finds RaftKV nodes on the local network")
	h.AddCommand(cli.Command{
		Name:        "(default)",
		Description: "Scan the LAN for RaftKV nodes via mDNS and print them",
		Flags: []cli.Flag{
			{Name: "timeout", Description: "discovery timeout in seconds", Default: "5"},
			{Name: "json", Description: "output results as JSON"},
			{Name: "quiet", Description: "only output addresses, for scripting"},
		},
		Examples: []cli.Example{
			{Description: "wait up to 10 seconds", Command: "raftkv-discover --timeout 10"},
			{Description: "feed addresses to raftnode's peer list", Command: "raftkv-discover --quiet"},
		},
	})
	h.PrintUsage()
}
