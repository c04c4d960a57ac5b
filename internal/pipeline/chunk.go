package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tacosync/internal/metrics"
	"tacosync/internal/request"

	"github.com/rs/zerolog"
)

// Chunk partitions list into fixed-size slices preserving order.
// Concatenating the chunks reconstructs list exactly.
func Chunk[T any](list []T, size int) [][]T {
	if size <= 0 || len(list) == 0 {
		if len(list) == 0 {
			return nil
		}
		return [][]T{list}
	}

	chunks := make([][]T, 0, (len(list)+size-1)/size)
	for i := 0; i < len(list); i += size {
		end := i + size
		if end > len(list) {
			end = len(list)
		}
		chunks = append(chunks, list[i:end])
	}
	return chunks
}

// ChunkOptions tunes the chunked executor.
type ChunkOptions struct {
	// Size of one chunk, the atomic retry unit.
	Size int
	// MaxRetries caps total attempts per chunk. Values below 1 mean a
	// single attempt.
	MaxRetries int
	// RetryDelay is waited before re-running a chunk after a transient
	// failure.
	RetryDelay time.Duration
	// ChunkDelay is waited between consecutive chunks (throttling).
	ChunkDelay time.Duration
	// SkipNotFound drops items that fail with 404 instead of failing
	// the chunk. Used during SKU resolution.
	SkipNotFound bool
	// Stage labels logs and metrics.
	Stage  string
	Logger zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// RunChunks processes items in fixed-size chunks. Chunks run strictly
// sequentially; within a chunk every item-level call runs concurrently
// and all outcomes are awaited before the chunk's fate is decided. A
// transient failure (no status or 5xx) reruns the whole chunk after
// RetryDelay, up to MaxRetries attempts; anything else propagates and
// aborts the run. Result order across chunks follows input order;
// within a chunk it does not carry meaning.
func RunChunks[T, R any](ctx context.Context, items []T, opts ChunkOptions, fn func(context.Context, T) (R, error)) ([]R, error) {
	sleep := opts.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	logger := opts.Logger.With().Str("stage", opts.Stage).Logger()

	chunks := Chunk(items, opts.Size)
	results := make([]R, 0, len(items))

	for index, chunk := range chunks {
		if index > 0 && opts.ChunkDelay > 0 {
			sleep(opts.ChunkDelay)
		}

		attempt := 0
		for {
			chunkResults, err := runChunkOnce(ctx, chunk, opts, logger, fn)
			if err == nil {
				results = append(results, chunkResults...)
				logger.Debug().Int("chunk", index+1).Int("chunks", len(chunks)).
					Int("items", len(chunk)).Msg("chunk done")
				break
			}

			attempt++
			if !request.IsRetryable(err) || attempt >= opts.MaxRetries {
				logger.Error().Err(err).Int("chunk", index+1).Int("chunks", len(chunks)).
					Int("attempt", attempt).Msg("chunk failed, aborting")
				return nil, fmt.Errorf("chunk %d/%d: %w", index+1, len(chunks), err)
			}

			metrics.IncChunkRetry(opts.Stage)
			logger.Warn().Err(err).Int("chunk", index+1).Int("chunks", len(chunks)).
				Int("attempt", attempt).Int("max_retries", opts.MaxRetries).
				Dur("wait", opts.RetryDelay).Msg("transient chunk failure, retrying whole chunk")
			sleep(opts.RetryDelay)
		}
	}

	return results, nil
}

// runChunkOnce launches every item concurrently and waits for all of
// them to settle. Only then is the chunk's outcome decided, so no
// in-flight work is left behind a failure.
func runChunkOnce[T, R any](ctx context.Context, chunk []T, opts ChunkOptions, logger zerolog.Logger, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(chunk))
	errs := make([]error, len(chunk))

	var wg sync.WaitGroup
	for i, item := range chunk {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, item)
		}()
	}
	wg.Wait()

	kept := make([]R, 0, len(chunk))
	var firstErr error
	for i := range chunk {
		if errs[i] != nil {
			if opts.SkipNotFound && request.IsNotFound(errs[i]) {
				logger.Warn().Err(errs[i]).Msg("item not found, dropping")
				continue
			}
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		kept = append(kept, results[i])
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return kept, nil
}
