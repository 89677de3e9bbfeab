// Package main provides the ISMIP6 index and field API HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/Englacial/ismip-indexing/internal/adapter/descriptors"
	"github.com/Englacial/ismip-indexing/internal/adapter/fieldcache"
	"github.com/Englacial/ismip-indexing/internal/adapter/indexcache"
	"github.com/Englacial/ismip-indexing/internal/adapter/ncread"
	"github.com/Englacial/ismip-indexing/internal/adapter/objstore"
	"github.com/Englacial/ismip-indexing/internal/adapter/regrid"
	"github.com/Englacial/ismip-indexing/internal/domain"
	httpHandler "github.com/Englacial/ismip-indexing/internal/http"
	"github.com/Englacial/ismip-indexing/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("ismip-indexing version %s\n", version)
		return
	}

	// Load configuration from environment.
	port := getEnv("PORT", "8080")
	endpoint := getEnv("OBJECT_STORE_ENDPOINT", "https://storage.googleapis.com")
	bucket := getEnv("OBJECT_STORE_BUCKET", "ismip6")
	root := getEnv("DATASET_ROOT", "")
	cachePath := getEnv("INDEX_CACHE_PATH", "./data/index.json.gz")
	vocabPath := getEnv("VOCABULARY_PATH", "")
	gridsPath := getEnv("GRIDS_PATH", "")
	concurrency := getEnvInt("SCAN_CONCURRENCY", 4)
	fieldCacheSize := getEnvInt("FIELD_CACHE_SIZE", 32)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting ISMIP6 index server",
		zap.String("version", version),
		zap.String("bucket", bucket),
		zap.String("index_cache", cachePath))

	ctx := context.Background()

	// Object store client.
	client, err := objstore.NewClient(ctx, objstore.Config{
		Endpoint:  endpoint,
		Bucket:    bucket,
		Region:    getEnv("OBJECT_STORE_REGION", "auto"),
		AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
	}, logger)
	if err != nil {
		logger.Fatal("object store client", zap.Error(err))
	}

	// Vocabulary, optionally extended from a descriptor file.
	vocab := domain.DefaultVocabulary()
	if vocabPath != "" {
		vocab, err = descriptors.LoadVocabulary(vocabPath, vocab)
		if err != nil {
			logger.Fatal("loading vocabulary descriptor", zap.Error(err))
		}
	}

	// Grid registry, optionally extended from descriptor files.
	registry := regrid.DefaultRegistry()
	if gridsPath != "" {
		if err := descriptors.LoadGrids(gridsPath, registry); err != nil {
			logger.Fatal("loading grid descriptor", zap.Error(err))
		}
	}

	scanner := objstore.NewScanner(client, logger, objstore.WithConcurrency(concurrency))
	store := indexcache.NewStore(cachePath, logger)

	indexSvc := usecase.NewIndexService(scanner, store, vocab, root, logger)
	querySvc := usecase.NewQueryService(indexSvc, client, &ncread.Reader{}, registry,
		fieldcache.New(fieldCacheSize), logger)

	// Warm the index from the cache artifact if one is present.
	if store.Exists() {
		if _, err := indexSvc.Build(ctx, false); err != nil {
			logger.Warn("index warm-up failed", zap.Error(err))
		}
	}

	// Setup router.
	router := httpHandler.SetupRouter(indexSvc, querySvc)

	// Start server.
	addr := fmt.Sprintf(":%s", port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("ISMIP6 Index Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                      Server port (default: 8080)")
	fmt.Println("  OBJECT_STORE_ENDPOINT     S3-compatible endpoint (default: https://storage.googleapis.com)")
	fmt.Println("  OBJECT_STORE_BUCKET       Bucket holding the dataset (default: ismip6)")
	fmt.Println("  OBJECT_STORE_REGION       Region passed to the SDK (default: auto)")
	fmt.Println("  OBJECT_STORE_ACCESS_KEY   Access key (default: anonymous)")
	fmt.Println("  OBJECT_STORE_SECRET_KEY   Secret key (default: anonymous)")
	fmt.Println("  DATASET_ROOT              Prefix of the projection partitions (default: bucket root)")
	fmt.Println("  INDEX_CACHE_PATH          Index artifact path (default: ./data/index.json.gz)")
	fmt.Println("  VOCABULARY_PATH           Extra vocabulary descriptor YAML (optional)")
	fmt.Println("  GRIDS_PATH                Extra grid descriptor YAML (optional)")
	fmt.Println("  SCAN_CONCURRENCY          Concurrent partition listings (default: 4)")
	fmt.Println("  FIELD_CACHE_SIZE          Normalized fields kept in memory (default: 32)")
	fmt.Println("  CORS_ALLOWED_ORIGINS      Comma-separated allowed origins (default: all origins)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health               Health check")
	fmt.Println("  GET /v1/index             Index summary (force_rebuild=true to rescan)")
	fmt.Println("  GET /v1/records           Indexed records matching a selector")
	fmt.Println("  GET /v1/combinations      Available (ice sheet, institution, model, experiment, variable) keys")
	fmt.Println("  GET /v1/fields            One time slab resampled onto the standard grid")
	fmt.Println("  GET /v1/fields/steps      Time steps available in a record's file")
	fmt.Println()
}
