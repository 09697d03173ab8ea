package types

// Compression algorithms for queued task payloads
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// CompressionMinSize is the encoded payload size below which compression is skipped.
const CompressionMinSize = 1024
