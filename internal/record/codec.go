package record

import (
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/blake2b-simd"
)

// codec turns nodes into canonical bytes and back. Encoding must be
// deterministic: the record id is the digest of the uncompressed encoding,
// so the same logical node always hashes to the same id.
type codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCodec() (*codec, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor dec mode: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

var std = func() *codec {
	c, err := newCodec()
	if err != nil {
		panic(err)
	}
	return c
}()

// Encode serializes a node and returns its content id alongside the
// canonical bytes. It is a pure function of the node's content.
func Encode(n *Node) (ID, []byte, error) {
	return std.encode(n)
}

func (c *codec) encode(n *Node) (ID, []byte, error) {
	data, err := c.enc.Marshal(n)
	if err != nil {
		return "", nil, fmt.Errorf("marshal node: %w", err)
	}
	return hashID(data), data, nil
}

func (c *codec) decode(data []byte) (*Node, error) {
	var n Node
	if err := c.dec.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}
	return &n, nil
}

func hashID(data []byte) ID {
	sum := blake2b.Sum256(data)
	return ID(base64.RawURLEncoding.EncodeToString(sum[:]))
}

func hashBlob(data []byte) BlobRef {
	sum := blake2b.Sum256(data)
	return BlobRef(base64.RawURLEncoding.EncodeToString(sum[:]))
}

// compressor wraps zstd for at-rest record bytes. Small payloads and
// payloads that do not shrink are stored raw; Decompress falls back to the
// input when it is not a zstd frame.
type compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	enabled bool
}

const compressThreshold = 128

func newCompressor(enabled bool) (*compressor, error) {
	if !enabled {
		return &compressor{enabled: false}, nil
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &compressor{encoder: encoder, decoder: decoder, enabled: true}, nil
}

func (c *compressor) Compress(data []byte) []byte {
	if !c.enabled || len(data) < compressThreshold {
		return data
	}
	compressed := c.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	if len(compressed) >= len(data) {
		return data
	}
	return compressed
}

func (c *compressor) Decompress(data []byte) []byte {
	if !c.enabled {
		return data
	}
	decompressed, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return data
	}
	return decompressed
}

func (c *compressor) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}
