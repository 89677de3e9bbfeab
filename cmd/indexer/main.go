// Package main provides the offline index builder CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/adapter/descriptors"
	"github.com/Englacial/ismip-indexing/internal/adapter/indexcache"
	"github.com/Englacial/ismip-indexing/internal/adapter/objstore"
	"github.com/Englacial/ismip-indexing/internal/domain"
	"github.com/Englacial/ismip-indexing/internal/usecase"
)

func main() {
	endpoint := flag.String("endpoint", "https://storage.googleapis.com", "S3-compatible endpoint")
	bucket := flag.String("bucket", "ismip6", "Bucket holding the dataset")
	root := flag.String("root", "", "Prefix of the projection partitions")
	cachePath := flag.String("cache", "./data/index.json.gz", "Index artifact path")
	vocabPath := flag.String("vocab", "", "Extra vocabulary descriptor YAML")
	force := flag.Bool("force", false, "Rescan even when a cached index exists")
	concurrency := flag.Int("concurrency", 4, "Concurrent partition listings")
	rps := flag.Float64("rps", 0, "Listing requests per second (0 = unlimited)")
	asJSON := flag.Bool("json", false, "Print the full index as JSON instead of a summary")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	client, err := objstore.NewClient(ctx, objstore.Config{
		Endpoint:  *endpoint,
		Bucket:    *bucket,
		Region:    "auto",
		AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
	}, logger)
	if err != nil {
		logger.Fatal("object store client", zap.Error(err))
	}

	vocab := domain.DefaultVocabulary()
	if *vocabPath != "" {
		vocab, err = descriptors.LoadVocabulary(*vocabPath, vocab)
		if err != nil {
			logger.Fatal("loading vocabulary descriptor", zap.Error(err))
		}
	}

	opts := []objstore.ScannerOption{objstore.WithConcurrency(*concurrency)}
	if *rps > 0 {
		opts = append(opts, objstore.WithRateLimit(*rps))
	}
	scanner := objstore.NewScanner(client, logger, opts...)
	store := indexcache.NewStore(*cachePath, logger)

	svc := usecase.NewIndexService(scanner, store, vocab, *root, logger)
	ix, err := svc.Build(ctx, *force)
	if err != nil {
		logger.Fatal("building index", zap.Error(err))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ix); err != nil {
			logger.Fatal("encoding index", zap.Error(err))
		}
		return
	}

	printSummary(ix)
}

func printSummary(ix *domain.Index) {
	available := ix.Available()

	corrected := 0
	reasons := map[domain.ReasonCode]int{}
	for _, rec := range ix.Records {
		if rec.Corrected {
			corrected++
		}
		if rec.Reason != "" {
			reasons[rec.Reason]++
		}
	}

	fmt.Printf("Index built at %s (%s)\n", ix.BuiltAt.Format("2006-01-02 15:04:05 MST"), ix.SourceDigest)
	fmt.Printf("  records:    %d\n", len(ix.Records))
	fmt.Printf("  available:  %d\n", len(available))
	fmt.Printf("  corrected:  %d\n", corrected)

	if len(reasons) > 0 {
		fmt.Println("  unavailable by reason:")
		w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
		for _, code := range []domain.ReasonCode{
			domain.ReasonUnparseablePath,
			domain.ReasonUnknownIceSheet,
			domain.ReasonUnknownModel,
			domain.ReasonUnknownVariable,
		} {
			if n := reasons[code]; n > 0 {
				fmt.Fprintf(w, "    %s\t%d\n", code, n)
			}
		}
		_ = w.Flush()
	}
}
