package client

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBenchSize     = 50 * 1024
	DefaultBenchNumParts = 5
)

type BenchOptions struct {
	Count    int
	Size     int
	NumParts int
	// Cleanup deletes the stored objects once they have been retrieved.
	Cleanup bool
}

type BenchResult struct {
	Count    int
	Size     int
	NumParts int

	Insert   time.Duration
	Retrieve time.Duration

	InsertFailures   int
	RetrieveFailures int
	// Mismatches counts objects that came back with different bytes.
	Mismatches int
}

func (r *BenchResult) InsertRate() float64 {
	return rate(r.Count-r.InsertFailures, r.Insert)
}

func (r *BenchResult) RetrieveRate() float64 {
	return rate(r.Count-r.InsertFailures-r.RetrieveFailures, r.Retrieve)
}

func rate(n int, d time.Duration) float64 {
	if n <= 0 || d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// Bench stores Count random objects, then downloads each of them, timing the
// two phases separately.
func (c *Client) Bench(ctx context.Context, opts BenchOptions) (*BenchResult, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("bench count must be positive, got %d", opts.Count)
	}
	if opts.Size <= 0 {
		opts.Size = DefaultBenchSize
	}
	if opts.NumParts <= 0 {
		opts.NumParts = DefaultBenchNumParts
	}

	result := &BenchResult{Count: opts.Count, Size: opts.Size, NumParts: opts.NumParts}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	names := make([]string, opts.Count)
	payloads := make([][]byte, opts.Count)
	for i := range names {
		names[i] = fmt.Sprintf("bench-%s.jpg", uuid.New().String())
		payloads[i] = make([]byte, opts.Size)
		rng.Read(payloads[i])
	}

	stored := make([]bool, opts.Count)
	start := time.Now()
	for i, name := range names {
		if err := c.Store(ctx, name, payloads[i], opts.NumParts); err != nil {
			c.logger.Warn("Bench store failed", zap.String("name", name), zap.Error(err))
			result.InsertFailures++
			continue
		}
		stored[i] = true
	}
	result.Insert = time.Since(start)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	start = time.Now()
	for i, name := range names {
		if !stored[i] {
			continue
		}
		data, err := c.Download(ctx, name)
		if err != nil {
			c.logger.Warn("Bench retrieve failed", zap.String("name", name), zap.Error(err))
			result.RetrieveFailures++
			continue
		}
		if !bytes.Equal(data, payloads[i]) {
			result.Mismatches++
		}
	}
	result.Retrieve = time.Since(start)

	if opts.Cleanup {
		for i, name := range names {
			if !stored[i] {
				continue
			}
			if _, _, err := c.Delete(ctx, name); err != nil {
				c.logger.Warn("Bench cleanup failed", zap.String("name", name), zap.Error(err))
			}
		}
	}

	return result, ctx.Err()
}
