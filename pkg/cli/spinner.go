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
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a "waiting on commit" indicator for a single in-flight
// raftctl request. A SubmitCommand round trip can legitimately stay open
// until the leader either commits the entry or gives up waiting for it,
// so the REPL shouldn't just go silent for that whole span.
type Spinner struct {
	message  string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewSpinner creates a spinner with the given message, not yet running.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, interval: 100 * time.Millisecond}
}

// Start begins the spinner animation in its own goroutine.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-s.stop:
				fmt.Print("\r\033[K")
				return
			case <-ticker.C:
				frame := spinnerFrames[i%len(spinnerFrames)]
				if colorsEnabled {
					fmt.Printf("\r%s%s%s %s", Cyan, frame, Reset, s.message)
				} else {
					fmt.Printf("\r%s %s", frame, s.message)
				}
				i++
			}
		}
	}()
}

// Stop halts the animation and blocks until its goroutine has exited, so
// a caller's own result line can't be clobbered by one more frame.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
	<-s.done
}

// UpdateMessage changes the spinner's label mid-flight.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// AwaitCommand runs fn behind a spinner labeled with message. raftctl
// wraps SubmitCommand with it so SET/GET/DELETE don't leave the terminal
// blank while the request is in flight to the leader.
func AwaitCommand(message string, fn func()) {
	s := NewSpinner(message)
	s.Start()
	fn()
	s.Stop()
}

// CatchUpBar renders a rejoined or restarted node's replay progress as
// its Apply Driver walks lastApplied forward to the cluster's commit
// index. commitIndex and lastApplied are volatile Raft state: they reset
// to zero on every restart even though the log itself is reloaded from
// disk, so a node that was down or partitioned for a while can have a
// large, visible gap to close the moment it hears from the current
// leader again.
type CatchUpBar struct {
	nodeID  string
	width   int
	mu      sync.Mutex
	printed bool
}

// NewCatchUpBar creates a catch-up bar labeled with nodeID.
func NewCatchUpBar(nodeID string) *CatchUpBar {
	return &CatchUpBar{nodeID: nodeID, width: 40}
}

// Update renders one Status poll: lastApplied out of commitIndex.
func (b *CatchUpBar) Update(lastApplied, commitIndex uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := commitIndex
	if target == 0 {
		target = 1
	}
	ratio := float64(lastApplied) / float64(target)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(b.width))

	bar := fmt.Sprintf("[%s%s]",
		colorize(Green, repeatChar('█', filled)),
		repeatChar('░', b.width-filled))

	fmt.Printf("\r%s applied %d/%d on %s", bar, lastApplied, commitIndex, b.nodeID)
	b.printed = true
}

// Done finalizes the bar's line once lastApplied has caught up.
func (b *CatchUpBar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.printed {
		fmt.Println()
	}
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
