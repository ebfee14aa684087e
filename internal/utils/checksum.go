package utils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Checksum contains the digests published next to an SDK archive
type Checksum struct {
	SHA256 string
	SHA512 string
	Size   int64
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return checksumReader(f)
}

func checksumReader(r io.Reader) (*Checksum, error) {
	sha256Hash := sha256.New()
	sha512Hash := sha512.New()

	// Use MultiWriter to calculate all hashes at once
	n, err := io.Copy(io.MultiWriter(sha256Hash, sha512Hash), r)
	if err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		SHA512: hex.EncodeToString(sha512Hash.Sum(nil)),
		Size:   n,
	}, nil
}

// SumLine formats the checksum the way sha256sum prints it
func (c *Checksum) SumLine(path string) string {
	return fmt.Sprintf("%s  %s\n", c.SHA256, filepath.Base(path))
}

// WriteChecksumFile writes "<path>.sha256" for path and returns its checksums
func WriteChecksumFile(path string) (*Checksum, error) {
	sum, err := CalculateChecksums(path)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(path+".sha256", []byte(sum.SumLine(path)), 0644); err != nil {
		return nil, err
	}
	return sum, nil
}
