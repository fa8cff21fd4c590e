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

package cli

import (
	"fmt"
	"os"
)

// CLIError represents a CLI error with suggestions.
type CLIError struct {
	Message     string
	Detail      string
	Suggestions []string
	ExitCode    int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// Print prints the error with formatting.
func (e *CLIError) Print() {
	fmt.Printf("\n%s %s\n", ErrorIcon(), Error(e.Message))

	if e.Detail != "" {
		fmt.Printf("  %s\n", Dimmed(e.Detail))
	}

	if len(e.Suggestions) > 0 {
		fmt.Println()
		fmt.Printf("  %s\n", Highlight("Suggestions:"))
		for _, s := range e.Suggestions {
			fmt.Printf("    • %s\n", s)
		}
	}
	fmt.Println()
}

// Exit prints the error and exits with the error code.
func (e *CLIError) Exit() {
	e.Print()
	os.Exit(e.ExitCode)
}

// NewCLIError creates a new CLI error.
func NewCLIError(message string) *CLIError {
	return &CLIError{
		Message:  message,
		ExitCode: 1,
	}
}

// WithDetail adds detail to the error.
func (e *CLIError) WithDetail(detail string) *CLIError {
	e.Detail = detail
	return e
}

// WithSuggestion adds a suggestion to the error.
func (e *CLIError) WithSuggestion(suggestion string) *CLIError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithExitCode sets the exit code.
func (e *CLIError) WithExitCode(code int) *CLIError {
	e.ExitCode = code
	return e
}

// Common CLI errors raftctl and raftnode raise, each with RaftKV-specific
// suggestions rather than a generic "something went wrong".

// ErrConnectionFailed creates a connection-failed error for raftctl
// dialing a node's RPC Service.
func ErrConnectionFailed(addr string, err error) *CLIError {
	return NewCLIError("Failed to connect to RaftKV node").
		WithDetail(fmt.Sprintf("dialing %s: %v", addr, err)).
		WithSuggestion("Ensure the node is running: ./raftnode -config <path>").
		WithSuggestion(fmt.Sprintf("Check that the node is listening on %s", addr)).
		WithSuggestion("Verify firewall settings allow the connection")
}

// ErrAuthFailed creates an error for a transport frame rejected by a
// node's cluster-secret HMAC check.
func ErrAuthFailed(addr string) *CLIError {
	return NewCLIError("Frame authentication failed").
		WithDetail(fmt.Sprintf("%s rejected the request's authentication tag", addr)).
		WithSuggestion("Pass the same -secret the node was started with").
		WithSuggestion("Check the node's cluster_secret in its config file")
}

// ErrInvalidCommand creates an invalid-command error for raftctl's
// SET/GET/DELETE/STATUS/ISOLATE/WAIT dispatch.
func ErrInvalidCommand(cmd string) *CLIError {
	return NewCLIError(fmt.Sprintf("Unknown command: %s", cmd)).
		WithSuggestion("Valid commands: SET <key> <value>, GET <key>, DELETE <key>, STATUS, ISOLATE <peer...>, WAIT").
		WithSuggestion("Type exit or quit to leave the REPL")
}

// ErrMissingArgument creates a missing-argument error.
func ErrMissingArgument(arg, usage string) *CLIError {
	return NewCLIError(fmt.Sprintf("Missing required argument: %s", arg)).
		WithSuggestion(fmt.Sprintf("Usage: %s", usage))
}

// ErrNoLeader creates an error for a SubmitCommand rejected because the
// contacted node doesn't know who the current leader is (a recent
// election may still be in progress).
func ErrNoLeader(nodeID string) *CLIError {
	return NewCLIError("No leader available").
		WithDetail(fmt.Sprintf("%s does not know the current leader", nodeID)).
		WithSuggestion("Retry shortly; an election may still be settling").
		WithSuggestion("Check STATUS on each node to see who is a candidate")
}

// ErrConfigNotFound creates a config-file-not-found error for raftnode.
func ErrConfigNotFound(path string) *CLIError {
	return NewCLIError("Configuration file not found").
		WithDetail(fmt.Sprintf("could not find: %s", path)).
		WithSuggestion("Write one with: raftnode -init-config " + path).
		WithSuggestion("Run with --help to see available options")
}

// ErrTLSConfig creates an error for a node configured with TLS but
// missing or invalid certificate material.
func ErrTLSConfig(certPath, keyPath string, err error) *CLIError {
	return NewCLIError("Invalid TLS configuration").
		WithDetail(fmt.Sprintf("loading %s / %s: %v", certPath, keyPath, err)).
		WithSuggestion("Remove the certificate file; raftnode generates a fresh self-signed pair on its next start with tls_enabled").
		WithSuggestion("Ensure the data directory is writable so certificates can be created")
}
