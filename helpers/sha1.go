package helpers

import (
	"crypto/sha1"
	"fmt"
)

// Sha1 returns the hex encoded sha1 of bytes
func Sha1(bytes []byte) (string, error) {
	s := sha1.New()
	_, err := s.Write(bytes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", s.Sum(nil)), nil
}
