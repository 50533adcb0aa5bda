package save

import "errors"

// Sentinel kinds for save pipeline errors. Callers distinguish them with
// errors.Is; the transport layer maps them to user-visible codes.
var (
	// ErrDecryption signals malformed ciphertext or failed padding
	// validation. Not retryable.
	ErrDecryption = errors.New("save decryption failed")

	// ErrDecompression signals a corrupt or undersized archive container.
	ErrDecompression = errors.New("save container unpack failed")

	// ErrTruncated signals that decoding ran past the end of a member.
	ErrTruncated = errors.New("truncated save data")

	// ErrMalformedRecord signals a structurally invalid record, such as a
	// presence bit outside the known tiers or a length mismatch.
	ErrMalformedRecord = errors.New("malformed save record")

	// ErrUnsupportedVersion signals an unknown member or version head.
	// Decoding never falls back to a best-effort parse.
	ErrUnsupportedVersion = errors.New("unsupported save version")
)
