package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// FileHash returns the hex md5 of a file, the same digest S3 reports as the ETag of a single part upload
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return HashReader(file)
}

// HashReader returns the hex md5 of everything read from r
func HashReader(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
