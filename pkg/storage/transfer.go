package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LucaPlaster/MyGeoEyes/pkg/types"

	"go.uber.org/zap"
)

const DefaultTransferConcurrency = 5

var ErrPartMissing = errors.New("part not held by source")

// PartSource serves parts of an object, typically a storage node.
type PartSource interface {
	DownloadPart(ctx context.Context, name string, index int) ([]byte, bool, error)
}

// PartTransfer downloads the parts of one object from their sources.
type PartTransfer struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewPartTransfer bounds each part download by timeout; zero means only the
// caller's context applies.
func NewPartTransfer(logger *zap.Logger, timeout time.Duration) *PartTransfer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartTransfer{
		logger:  logger,
		timeout: timeout,
	}
}

// FetchPart downloads a single part.
func (pt *PartTransfer) FetchPart(ctx context.Context, name string, index int, source PartSource) ([]byte, error) {
	if pt.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pt.timeout)
		defer cancel()
	}

	data, found, err := source.DownloadPart(ctx, name, index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPartMissing, types.PartKey{Object: name, Index: index})
	}
	return data, nil
}

// ParallelFetch downloads part i from sources[i], at most maxConcurrency at
// a time, and returns the parts in index order.
func (pt *PartTransfer) ParallelFetch(ctx context.Context, name string, sources []PartSource, maxConcurrency int) ([][]byte, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultTransferConcurrency
	}

	parts := make([][]byte, len(sources))
	sem := make(chan struct{}, maxConcurrency)
	errChan := make(chan error, len(sources))

	for i, source := range sources {
		sem <- struct{}{}

		go func(index int, src PartSource) {
			defer func() { <-sem }()

			data, err := pt.FetchPart(ctx, name, index, src)
			if err != nil {
				errChan <- fmt.Errorf("fetch part %d: %w", index, err)
				return
			}
			// Each goroutine owns one slot.
			parts[index] = data
		}(i, source)
	}

	// Wait for all fetches to complete
	for i := 0; i < maxConcurrency; i++ {
		sem <- struct{}{}
	}

	close(errChan)

	var firstErr error
	errorCount := 0
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
		errorCount++
		pt.logger.Debug("Part fetch failed", zap.String("name", name), zap.Error(err))
	}

	if errorCount > 0 {
		return nil, fmt.Errorf("%d of %d parts failed, first error: %w", errorCount, len(sources), firstErr)
	}
	return parts, nil
}
