package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// fieldSeparator is the ASCII unit separator. It cannot appear in a CSV cell
// produced by the report exporters, so joined fields stay unambiguous.
const fieldSeparator = "\x1f"

// GetFileChecksum returns the hex xxhash digest of the file content.
func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	return ReaderChecksum(file)
}

// ReaderChecksum hashes everything left in r.
func ReaderChecksum(r io.Reader) (string, error) {
	hasher := xxhash.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to copy content to hasher: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CalculateHash hashes an ordered list of already-encoded fields.
func CalculateHash(fields []string) string {
	digest := xxhash.New()
	digest.WriteString(strings.Join(fields, fieldSeparator))

	return hex.EncodeToString(digest.Sum(nil))
}

// TeeReader returns a reader that hashes everything read through it. The
// returned sum func reports the digest of the bytes consumed so far.
func TeeReader(r io.Reader) (io.Reader, func() string) {
	hasher := xxhash.New()
	return io.TeeReader(r, hasher), func() string {
		return hex.EncodeToString(hasher.Sum(nil))
	}
}
