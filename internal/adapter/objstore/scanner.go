package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultConcurrency = 4
	defaultMaxRetries  = 3
	defaultBackoff     = 500 * time.Millisecond

	// partitionMarker selects the top-level prefixes holding projection
	// output; everything else under the root (docs, checksums) is skipped at
	// the partition level.
	partitionMarker = "Projection-"
)

// Scanner enumerates every object under the dataset root with bounded
// concurrency. Transient listing failures are retried per page; a partition
// that keeps failing is skipped with a warning so a stall in one partition
// never aborts the whole scan.
type Scanner struct {
	lister      Lister
	logger      *zap.Logger
	concurrency int
	maxRetries  int
	backoff     time.Duration
	limiter     *rate.Limiter
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithConcurrency bounds the partition fan-out.
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRateLimit caps listing requests per second across all workers.
func WithRateLimit(rps float64) ScannerOption {
	return func(s *Scanner) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the per-page retry budget and initial backoff.
func WithRetry(maxRetries int, backoff time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// NewScanner creates a scanner over the given lister.
func NewScanner(lister Lister, logger *zap.Logger, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		lister:      lister,
		logger:      logger,
		concurrency: defaultConcurrency,
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanResult is the outcome of one full enumeration.
type ScanResult struct {
	// Objects holds every discovered entry exactly once, in key order.
	Objects []Object

	// Warnings records partitions that were skipped after exhausting
	// retries. A non-empty list means the scan is complete but partial.
	Warnings []string
}

// Scan lists all objects under root. The returned objects are deduplicated
// by canonical URI and sorted by key, so scans over unchanged bucket state
// are reproducible.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	partitions, err := s.partitions(ctx, root)
	if err != nil {
		return nil, err
	}

	type partitionResult struct {
		objs    []Object
		warning string
	}
	results := make(chan partitionResult, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, partition := range partitions {
		g.Go(func() error {
			objs, err := s.listPartition(gctx, partition)
			if err != nil {
				// Degrade to a warning unless the caller cancelled.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("partition skipped after retries",
					zap.String("partition", partition), zap.Error(err))
				results <- partitionResult{warning: fmt.Sprintf("partition %s skipped: %v", partition, err)}
				return nil
			}
			results <- partitionResult{objs: objs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	// Single-writer merge: dedup by canonical URI across partitions.
	seen := make(map[string]bool)
	res := &ScanResult{}
	for pr := range results {
		if pr.warning != "" {
			res.Warnings = append(res.Warnings, pr.warning)
			continue
		}
		for _, obj := range pr.objs {
			if seen[obj.URI] {
				continue
			}
			seen[obj.URI] = true
			res.Objects = append(res.Objects, obj)
		}
	}
	sort.Slice(res.Objects, func(i, j int) bool { return res.Objects[i].Key < res.Objects[j].Key })
	sort.Strings(res.Warnings)

	s.logger.Info("scan complete",
		zap.String("root", root),
		zap.Int("partitions", len(partitions)),
		zap.Int("objects", len(res.Objects)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// partitions resolves the top-level fan-out units. When the root exposes no
// projection prefixes the root itself is scanned as a single partition.
func (s *Scanner) partitions(ctx context.Context, root string) ([]string, error) {
	var prefixes []string
	err := s.withRetry(ctx, "list partitions", func() error {
		var err error
		prefixes, err = s.lister.ListPartitions(ctx, root)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	var partitions []string
	for _, p := range prefixes {
		if strings.Contains(p, partitionMarker) {
			partitions = append(partitions, p)
		}
	}
	if len(partitions) == 0 {
		partitions = []string{root}
	}
	sort.Strings(partitions)
	return partitions, nil
}

// listPartition pages through one partition, retrying each page.
func (s *Scanner) listPartition(ctx context.Context, prefix string) ([]Object, error) {
	var objs []Object
	token := ""
	for {
		var page []Object
		var next string
		err := s.withRetry(ctx, "list "+prefix, func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			var err error
			page, next, err = s.lister.ListPage(ctx, prefix, token)
			return err
		})
		if err != nil {
			return nil, err
		}
		objs = append(objs, page...)
		if next == "" {
			return objs, nil
		}
		token = next
	}
}

// withRetry runs fn up to maxRetries+1 times with exponential backoff.
func (s *Scanner) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := s.backoff
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		s.logger.Debug("transient listing failure",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}
