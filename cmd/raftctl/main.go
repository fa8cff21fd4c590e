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
raftctl is the RaftKV client: an interactive REPL for SET/GET/DELETE
commands plus status, catch-up watching, and test-only isolation
control, and a set of one-shot subcommands for scripting.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"raftkv/internal/discovery"
	"raftkv/internal/raft"
	"raftkv/internal/transport"
	"raftkv/pkg/cli"
)

const (
	version        = "1.0.0"
	defaultTimeout = 5 * time.Second
	catchUpTimeout = 30 * time.Second
)

func main() {
	addr := flag.String("addr", "", "Node address to connect to (default 127.0.0.1:7000, or discovered)")
	secret := flag.String("secret", "", "Cluster secret, if frame authentication is enabled")
	discoverLAN := flag.Bool("discover", false, "Discover nodes via mDNS and prompt to pick one")
	skipConfirm := flag.Bool("yes", false, "Skip confirmation prompts (for scripting ISOLATE)")
	help := flag.Bool("help", false, "Show help")
	flag.BoolVar(help, "h", false, "Show help")
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	target := *addr
	if *discoverLAN || target == "" {
		chosen, err := discoverAndSelect(*addr)
		if err != nil {
			cli.PrintError("discovery failed: %v", err)
			os.Exit(1)
		}
		target = chosen
	}

	client, err := transport.NewClient(transport.ClientConfig{Addr: target, ClusterSecret: *secret})
	if err != nil {
		cli.ErrConnectionFailed(target, err).Exit()
	}

	args := flag.Args()
	if len(args) > 0 {
		runOneShot(client, target, args, *skipConfirm)
		return
	}

	runREPL(client, target)
}

// discoverAndSelect runs mDNS discovery and, when more than one node
// answers and no explicit address was given, asks the operator which one
// to connect to. A single result, or an explicit addr, skips the prompt.
func discoverAndSelect(explicitAddr string) (string, error) {
	if explicitAddr != "" {
		return explicitAddr, nil
	}

	peers, err := discovery.Discover(5 * time.Second)
	if err != nil || len(peers) == 0 {
		return "127.0.0.1:7000", nil
	}
	if len(peers) == 1 {
		return peers[0].Addr, nil
	}

	options := make([]string, len(peers))
	for i, p := range peers {
		options[i] = fmt.Sprintf("%s (%s)", p.NodeID, p.Addr)
	}
	idx := cli.PromptSelect("Multiple RaftKV nodes found on the network:", options, 0)
	return peers[idx].Addr, nil
}

func runOneShot(client *transport.Client, addr string, args []string, skipConfirm bool) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	switch strings.ToUpper(args[0]) {
	case "SET", "GET", "DELETE":
		command := strings.Join(args, " ")
		var result raft.SubmitResult
		var err error
		cli.AwaitCommand("awaiting commit...", func() {
			result, err = client.SubmitCommand(ctx, command)
		})
		printSubmitResult(result, err, addr)
	case "STATUS":
		printStatus(client, ctx)
	case "WAIT":
		awaitCatchUp(client)
	case "ISOLATE":
		if len(args) < 2 {
			cli.ErrMissingArgument("peer...", "raftctl ISOLATE <peer...>").Print()
			os.Exit(1)
		}
		peers := args[1:]
		if !skipConfirm && !cli.ConfirmDestructive(
			fmt.Sprintf("This will isolate %s from %s, which can trigger a new election.", strings.Join(peers, ", "), addr),
			"isolate") {
			cli.PrintWarning("aborted")
			os.Exit(1)
		}
		if err := client.Isolate(ctx, peers); err != nil {
			cli.PrintError("isolate failed: %v", err)
			os.Exit(1)
		}
		cli.PrintSuccess("isolation set updated")
	default:
		cli.ErrInvalidCommand(args[0]).Print()
		os.Exit(1)
	}
}

func runREPL(client *transport.Client, addr string) {
	rl, err := readline.New(fmt.Sprintf("raftkv[%s]> ", addr))
	if err != nil {
		cli.PrintError("starting readline: %v", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%sRaftKV client%s connected to %s\n", cli.Bold, cli.Reset, addr)
	fmt.Println("Commands: SET <key> <value>, GET <key>, DELETE <key>, STATUS, WAIT, ISOLATE <peer...>, exit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		fields := strings.Fields(line)

		switch strings.ToUpper(fields[0]) {
		case "STATUS":
			printStatus(client, ctx)
		case "WAIT":
			awaitCatchUp(client)
		case "ISOLATE":
			if len(fields) < 2 {
				cli.ErrMissingArgument("peer...", "ISOLATE <peer...>").Print()
			} else if cli.Confirm(fmt.Sprintf("isolate %s from %s?", strings.Join(fields[1:], ", "), addr)) {
				if err := client.Isolate(ctx, fields[1:]); err != nil {
					cli.PrintError("isolate failed: %v", err)
				} else {
					cli.PrintSuccess("isolation set updated")
				}
			} else {
				cli.PrintWarning("aborted")
			}
		default:
			var result raft.SubmitResult
			var err error
			cli.AwaitCommand("awaiting commit...", func() {
				result, err = client.SubmitCommand(ctx, line)
			})
			printSubmitResult(result, err, addr)
		}
		cancel()
	}
}

func printSubmitResult(result raft.SubmitResult, err error, addr string) {
	if err != nil {
		if strings.Contains(err.Error(), "frame authentication failed") {
			cli.ErrAuthFailed(addr).Print()
			return
		}
		cli.ErrConnectionFailed(addr, err).Print()
		return
	}
	if !result.Success {
		if result.LeaderID == "" || result.LeaderID == "unknown" {
			cli.ErrNoLeader(addr).Print()
			return
		}
		cli.PrintWarning("%s", result.Message)
		fmt.Printf("  current leader: %s\n", result.LeaderID)
		return
	}
	fmt.Println(result.Message)
}

func printStatus(client *transport.Client, ctx context.Context) {
	status, err := client.Status(ctx)
	if err != nil {
		cli.PrintError("status failed: %v", err)
		return
	}

	table := cli.NewTable("FIELD", "VALUE")
	table.AddRow("Node ID", status.NodeID)
	table.AddRow("Role", cli.FormatRole(status.Role.String()))
	table.AddRow("Term", strconv.FormatUint(status.Term, 10))
	table.AddRow("Leader", orDash(status.LeaderID))
	table.AddRow("Commit Index", strconv.FormatUint(status.CommitIndex, 10))
	table.AddRow("Last Applied", strconv.FormatUint(status.LastApplied, 10))
	table.AddRow("Log Length", strconv.Itoa(status.LogLength))
	table.Print()
}

// awaitCatchUp polls Status until the node's Apply Driver has caught
// lastApplied up to commitIndex, rendering a CatchUpBar while it waits.
// This matters right after a restart or a healed partition: a node's
// commitIndex and lastApplied are volatile and come back at zero even
// though its log was reloaded from disk, so there can be a real, visible
// gap to close before it's safe to trust its state for reads.
func awaitCatchUp(client *transport.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), catchUpTimeout)
	defer cancel()

	status, err := client.Status(ctx)
	if err != nil {
		cli.PrintError("status failed: %v", err)
		return
	}
	if status.LastApplied >= status.CommitIndex {
		cli.PrintSuccess("%s is already caught up (applied %d)", status.NodeID, status.LastApplied)
		return
	}

	bar := cli.NewCatchUpBar(status.NodeID)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for status.LastApplied < status.CommitIndex {
		bar.Update(status.LastApplied, status.CommitIndex)
		select {
		case <-ctx.Done():
			bar.Done()
			cli.PrintWarning("timed out waiting for %s to catch up", status.NodeID)
			return
		case <-ticker.C:
		}
		status, err = client.Status(ctx)
		if err != nil {
			bar.Done()
			cli.PrintError("status failed: %v", err)
			return
		}
	}
	bar.Update(status.LastApplied, status.CommitIndex)
	bar.Done()
	cli.PrintSuccess("%s caught up at index %d", status.NodeID, status.LastApplied)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printHelp() {
	h := cli.NewHelpFormatter("raftctl", version, "the RaftKV client")
	h.AddCommand(cli.Command{
		Name:        "SET",
		Description: "Write a key to the cluster",
		Usage:       "raftctl [-addr ADDR] SET <key> <value>",
		Examples:    []cli.Example{{Description: "set a key", Command: "raftctl SET foo bar"}},
	})
	h.AddCommand(cli.Command{
		Name:        "GET",
		Description: "Read a key from the cluster",
		Usage:       "raftctl [-addr ADDR] GET <key>",
	})
	h.AddCommand(cli.Command{
		Name:        "DELETE",
		Description: "Delete a key from the cluster",
		Usage:       "raftctl [-addr ADDR] DELETE <key>",
	})
	h.AddCommand(cli.Command{
		Name:        "STATUS",
		Description: "Print a node's role, term, and log/commit progress",
	})
	h.AddCommand(cli.Command{
		Name:        "WAIT",
		Description: "Watch a node's Apply Driver catch lastApplied up to commitIndex",
	})
	h.AddCommand(cli.Command{
		Name:        "ISOLATE",
		Description: "Test-only fault injection: cut a node off from given peers",
		Usage:       "raftctl [-addr ADDR] ISOLATE <peer...>",
		Flags: []cli.Flag{
			{Name: "yes", Description: "skip the destructive-operation confirmation prompt"},
		},
	})
	h.AddCommand(cli.Command{
		Name:        "(no args)",
		Description: "Start an interactive REPL against -addr",
	})
	h.PrintUsage()
}
