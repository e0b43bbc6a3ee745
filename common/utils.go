// utils.go
// Purpose: Small utility helpers used by the project (frame trimming, deep copy).
// Kept minimal and safe for concurrent usage.
package common

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// TrimZeros strips the zero padding added to fixed-size frames.
func TrimZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// DeepCopy returns an independent copy of src, including maps and slices.
func DeepCopy[T any](src T) (T, error) {
	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return dst, fmt.Errorf("deep copy: %w", err)
	}
	return dst, nil
}
