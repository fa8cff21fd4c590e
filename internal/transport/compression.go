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
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm is a payload compression scheme for AppendEntries batches
// above compressMinBytes.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmLZ4
	AlgorithmSnappy
	AlgorithmZstd
)

// ParseAlgorithm parses a compression algorithm name, as carried in
// config.Config.Compression.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "", "none":
		return AlgorithmNone, nil
	case "gzip":
		return AlgorithmGzip, nil
	case "lz4":
		return AlgorithmLZ4, nil
	case "snappy":
		return AlgorithmSnappy, nil
	case "zstd":
		return AlgorithmZstd, nil
	default:
		return AlgorithmNone, fmt.Errorf("unknown compression algorithm: %s", s)
	}
}

// compressMinBytes is the threshold below which compressing isn't worth
// the CPU — most heartbeats and small batches skip it entirely.
const compressMinBytes = 256

var zstdEncoder, _ = zstd.NewWriter(nil)
var zstdDecoder, _ = zstd.NewReader(nil)

// compress encodes data with algo if data is large enough to be worth
// it; otherwise it returns data unchanged and reports AlgorithmNone so
// the peer knows not to decompress.
func compress(algo Algorithm, data []byte) (Algorithm, []byte, error) {
	if algo == AlgorithmNone || len(data) < compressMinBytes {
		return AlgorithmNone, data, nil
	}

	switch algo {
	case AlgorithmGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return AlgorithmNone, nil, err
		}
		if err := w.Close(); err != nil {
			return AlgorithmNone, nil, err
		}
		return AlgorithmGzip, buf.Bytes(), nil

	case AlgorithmSnappy:
		return AlgorithmSnappy, snappy.Encode(nil, data), nil

	case AlgorithmLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return AlgorithmNone, nil, err
		}
		if err := w.Close(); err != nil {
			return AlgorithmNone, nil, err
		}
		return AlgorithmLZ4, buf.Bytes(), nil

	case AlgorithmZstd:
		return AlgorithmZstd, zstdEncoder.EncodeAll(data, nil), nil

	default:
		return AlgorithmNone, data, nil
	}
}

// decompress reverses compress, dispatching on the algorithm the sender
// reported rather than any locally configured default.
func decompress(algo Algorithm, data []byte) ([]byte, error) {
	switch algo {
	case AlgorithmNone:
		return data, nil

	case AlgorithmGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case AlgorithmSnappy:
		return snappy.Decode(nil, data)

	case AlgorithmLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		return io.ReadAll(r)

	case AlgorithmZstd:
		return zstdDecoder.DecodeAll(data, nil)

	default:
		return nil, fmt.Errorf("unsupported compression algorithm %d", algo)
	}
}
