// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"

	"github.com/bureau-foundation/spanstream/lib/codec"
)

// CodecName is the gRPC content subtype for CBOR-framed messages. The
// wire content type is "application/grpc+cbor".
const CodecName = "cbor"

// CompressorName is the gRPC compressor name for zstd.
const CompressorName = "zstd"

func init() {
	encoding.RegisterCodec(cborCodec{})
	encoding.RegisterCompressor(zstdCompressor{})
}

// cborCodec frames gRPC messages with lib/codec.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) { return codec.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }

func (cborCodec) Name() string { return CodecName }

// zstdCompressor compresses each gRPC message as one zstd frame. Both
// directions run single-threaded: messages are single spans, far
// below the size where concurrent block coding pays off.
type zstdCompressor struct{}

func (zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
}

func (zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &zstdReader{decoder: decoder}, nil
}

func (zstdCompressor) Name() string { return CompressorName }

// zstdReader releases the decoder once the frame is fully read.
type zstdReader struct {
	decoder *zstd.Decoder
}

func (r *zstdReader) Read(p []byte) (int, error) {
	n, err := r.decoder.Read(p)
	if err == io.EOF {
		r.decoder.Close()
	}
	return n, err
}
