// Package runid names generation runs. IDs sort by start time and are safe
// to use in file names and object keys.
package runid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	prefix      = "run-"
	stampLayout = "20060102T150405Z"
	randomBytes = 4
)

// Generate returns a new run ID, e.g. run-20261017T093000Z-a1b2c3d4.
func Generate() string {
	id, err := New(time.Now(), rand.Reader)
	if err != nil {
		// Nanoseconds keep concurrent runs apart when entropy is unavailable.
		return fmt.Sprintf("%s%s-%09d", prefix, time.Now().UTC().Format(stampLayout), time.Now().Nanosecond())
	}
	return id
}

// New builds a run ID from a start time and a source of random bytes.
func New(started time.Time, random io.Reader) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return prefix + started.UTC().Format(stampLayout) + "-" + hex.EncodeToString(buf), nil
}
