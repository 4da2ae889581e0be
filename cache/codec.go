package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Encode serialises data for storage in the cache
func Encode(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("enc.Encode(data) %w", err)
	}

	return buf.Bytes(), nil
}

// Decode deserialises a value previously written by Encode into dst, which
// must be a pointer
func Decode(value []byte, dst interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(value))
	err := dec.Decode(dst)
	if err != nil {
		return fmt.Errorf("dec.Decode(dst) %w", err)
	}

	return nil
}
