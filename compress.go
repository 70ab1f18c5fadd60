package xclaim

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// Compress gzips a text payload.
func Compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		return nil, fmt.Errorf("xclaim: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("xclaim: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Malformed input fails with a CodecError.
func Decompress(data []byte) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", &CodecError{Err: err}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", &CodecError{Err: err}
	}
	return string(out), nil
}

// CompressToText gzips and base64-encodes a payload so compressed data can
// ride through channels that only accept valid text.
func CompressToText(text string) (string, error) {
	compressed, err := Compress(text)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(compressed), nil
}

// DecompressFromText reverses CompressToText.
func DecompressFromText(encoded string) (string, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &CodecError{Err: err}
	}
	return Decompress(compressed)
}
