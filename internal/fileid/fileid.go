// Package fileid derives identifiers from file paths and file contents.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// chunkSize is the read buffer used when hashing file contents.
const chunkSize = 64 * 1024

// PathDigest returns the hex SHA-256 of the cleaned path.
// Same path always yields the same digest.
func PathDigest(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// ShortPathDigest returns the first n hex characters of PathDigest, used to
// keep scratch file names from colliding when sources share a base name.
func ShortPathDigest(path string, n int) string {
	d := PathDigest(path)
	if n <= 0 || n > len(d) {
		return d
	}
	return d[:n]
}

// ContentDigest hashes the bytes of every file, in list order, through a
// single SHA-256 accumulator and returns the lowercase hex digest. Files are
// streamed in fixed-size chunks. Any open or read error aborts the digest.
func ContentDigest(files []string) (string, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	for _, path := range files {
		if err := hashFile(h, path, buf); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string, buf []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
