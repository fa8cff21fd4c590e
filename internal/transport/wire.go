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
Package transport is the RPC Service: it implements raft.Transport for
outbound peer RPCs, accepts inbound peer and client connections, and
dispatches them against a *raft.Node. The wire framing — one byte for
message type, four bytes big-endian length, then a JSON body — covers
all five RPCs (RequestVote, AppendEntries, SubmitCommand, Isolate,
Status).
*/
package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

type msgType byte

const (
	msgRequestVote msgType = iota + 0x10
	msgRequestVoteResp
	msgAppendEntries
	msgAppendEntriesResp
	msgSubmitCommand
	msgSubmitCommandResp
	msgIsolate
	msgIsolateResp
	msgStatus
	msgStatusResp
)

// writeFrame writes a single type-tagged, length-prefixed JSON frame.
func writeFrame(w io.Writer, t msgType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}
	if _, err := w.Write([]byte{byte(t)}); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFrame reads one type-tagged, length-prefixed JSON frame and
// unmarshals its body into out.
func readFrame(r io.Reader, out any) (msgType, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return 0, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	const maxFrame = 64 << 20
	if n > maxFrame {
		return 0, fmt.Errorf("frame too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return msgType(typeBuf[0]), fmt.Errorf("unmarshaling frame body: %w", err)
		}
	}
	return msgType(typeBuf[0]), nil
}
