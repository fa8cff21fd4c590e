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

package raft

// Start launches the three long-lived drivers (Election, Replication,
// Apply); the fourth long-lived activity, the RPC Service, lives in
// internal/transport and calls into RequestVote/AppendEntries/
// SubmitCommand/Isolate/Status directly.
func (n *Node) Start() {
	n.wg.Add(3)
	go n.runElectionDriver()
	go n.runReplicationDriver()
	go n.runApplyDriver()
	n.log.Info("node started", "peers", itoa(uint64(len(n.peers))))
}

// Stop cooperatively stops all drivers and waits for them to exit.
func (n *Node) Stop() {
	close(n.stopCh)
	n.wg.Wait()
	n.log.Info("node stopped")
}
