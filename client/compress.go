package client

import (
	"bytes"

	"github.com/pierrec/lz4/v4"

	"github.com/ulala-x/playhouse/constants"
)

// Compress LZ4-compresses body if it is at or above
// constants.CompressionThresholdBytes (spec sec 4.9.3): server->client
// pushes and replies above the threshold are compressed, smaller ones
// are sent as-is to avoid the fixed LZ4 block overhead outweighing the
// saving. originalSize is 0 when body was left uncompressed, or body's
// pre-compression length otherwise — the discriminator the wire's
// originalSize field carries (spec sec 4.9.2).
func Compress(body []byte) (out []byte, originalSize uint32, err error) {
	if len(body) < constants.CompressionThresholdBytes {
		return body, 0, nil
	}
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, 0, err
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), uint32(len(body)), nil
}

// Decompress reverses Compress. originalSize of 0 means body is
// uncompressed; otherwise body is LZ4 data compressed from a payload of
// that length.
func Decompress(body []byte, originalSize uint32) ([]byte, error) {
	if originalSize == 0 {
		return body, nil
	}
	r := lz4.NewReader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
