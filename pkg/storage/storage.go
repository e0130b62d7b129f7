package storage

import (
	"bytes"
	"fmt"

	"github.com/LucaPlaster/MyGeoEyes/pkg/types"
)

// SplitRanges divides length bytes into numParts contiguous ranges. Every
// range is length/numParts bytes except the last, which absorbs the
// remainder, so the ranges always cover [0, length) exactly.
func SplitRanges(length, numParts int) ([]types.PartRange, error) {
	if numParts < 1 {
		return nil, fmt.Errorf("number of parts must be at least 1, got %d", numParts)
	}
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}

	partSize := length / numParts
	ranges := make([]types.PartRange, numParts)
	for i := 0; i < numParts; i++ {
		start := i * partSize
		end := start + partSize
		if i == numParts-1 {
			end = length
		}
		ranges[i] = types.PartRange{Index: i, Start: start, End: end}
	}
	return ranges, nil
}

// SplitIntoParts returns the part slices of data. The slices alias data.
func SplitIntoParts(data []byte, numParts int) ([][]byte, error) {
	ranges, err := SplitRanges(len(data), numParts)
	if err != nil {
		return nil, err
	}

	parts := make([][]byte, len(ranges))
	for _, r := range ranges {
		parts[r.Index] = data[r.Start:r.End:r.End]
	}
	return parts, nil
}

// ReassembleParts concatenates parts in index order. A nil entry means the
// part was never fetched and is reported as missing; an empty non-nil entry
// is a legitimately empty part.
func ReassembleParts(parts [][]byte) ([]byte, error) {
	size := 0
	for i, part := range parts {
		if part == nil {
			return nil, fmt.Errorf("missing part at index %d", i)
		}
		size += len(part)
	}

	var result bytes.Buffer
	result.Grow(size)
	for _, part := range parts {
		result.Write(part)
	}
	return result.Bytes(), nil
}
