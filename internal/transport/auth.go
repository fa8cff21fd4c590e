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

package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// frameMACSize is the HMAC-SHA256 tag size appended to an authenticated
// frame.
const frameMACSize = 32

// authenticator signs and verifies frame bodies with a key derived from
// the cluster secret via HKDF, so every peer connection proves cluster
// membership without a full mutual-TLS CA chain.
type authenticator struct {
	key []byte
}

// newAuthenticator derives a 32-byte signing key from the cluster
// secret. The info string ties the derived key to this specific use.
func newAuthenticator(clusterSecret string) (*authenticator, error) {
	if clusterSecret == "" {
		return nil, fmt.Errorf("cluster secret must not be empty when authentication is enabled")
	}
	reader := hkdf.New(sha256.New, []byte(clusterSecret), nil, []byte("raftkv-frame-auth-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("deriving authentication key: %w", err)
	}
	return &authenticator{key: key}, nil
}

// sign computes the MAC over a message-type byte and a frame body.
func (a *authenticator) sign(t msgType, body []byte) []byte {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte{byte(t)})
	mac.Write(body)
	return mac.Sum(nil)
}

// verify reports whether tag authenticates (t, body) under this key,
// using constant-time comparison.
func (a *authenticator) verify(t msgType, body, tag []byte) bool {
	return hmac.Equal(a.sign(t, body), tag)
}

// writeAuthenticatedFrame writes a type-tagged, length-prefixed JSON
// frame followed by its MAC tag, computed over the type byte and the JSON
// body (the length prefix is not covered).
func writeAuthenticatedFrame(w io.Writer, a *authenticator, t msgType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}
	if _, err := w.Write([]byte{byte(t)}); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err = w.Write(a.sign(t, body))
	return err
}

// readAuthenticatedFrame reads a frame and its trailing MAC tag,
// rejecting the frame outright if the tag doesn't verify.
func readAuthenticatedFrame(r io.Reader, a *authenticator, out any) (msgType, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return 0, err
	}
	t := msgType(typeBuf[0])

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

	tag := make([]byte, frameMACSize)
	if _, err := io.ReadFull(r, tag); err != nil {
		return 0, fmt.Errorf("reading frame MAC: %w", err)
	}
	if !a.verify(t, body, tag) {
		return 0, fmt.Errorf("frame authentication failed")
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return t, fmt.Errorf("unmarshaling frame body: %w", err)
		}
	}
	return t, nil
}
