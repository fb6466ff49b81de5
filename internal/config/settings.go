package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for pipeline settings left unset by both YAML and env.
const (
	DefaultCollection         = "ragchat_documents"
	DefaultTopN               = 5
	DefaultRelevanceThreshold = 0.3
	DefaultClusterK           = 10
)

// RetrievalSettings resolves the query-time knobs from the environment and
// validates them. Out-of-range values are configuration errors surfaced at
// startup, never during a query.
func RetrievalSettings() (topN int, threshold float32, err error) {
	topN = DefaultTopN
	if v := os.Getenv("RETRIEVAL_TOP_N"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, 0, fmt.Errorf("config: RETRIEVAL_TOP_N %q is not an integer", v)
		}
		topN = n
	}
	if topN < 1 {
		return 0, 0, fmt.Errorf("config: RETRIEVAL_TOP_N must be at least 1, got %d", topN)
	}

	threshold = DefaultRelevanceThreshold
	if v := os.Getenv("RELEVANCE_THRESHOLD"); v != "" {
		f, convErr := strconv.ParseFloat(v, 32)
		if convErr != nil {
			return 0, 0, fmt.Errorf("config: RELEVANCE_THRESHOLD %q is not a number", v)
		}
		threshold = float32(f)
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, fmt.Errorf("config: RELEVANCE_THRESHOLD must be in [0, 1], got %g", threshold)
	}

	return topN, threshold, nil
}

// ClusterK resolves the requested cluster count from the environment.
func ClusterK() (int, error) {
	k := DefaultClusterK
	if v := os.Getenv("CLUSTER_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("config: CLUSTER_K %q is not an integer", v)
		}
		k = n
	}
	if k < 1 {
		return 0, fmt.Errorf("config: CLUSTER_K must be at least 1, got %d", k)
	}
	return k, nil
}

// Collection returns the configured collection name.
func Collection() string {
	if v := os.Getenv("RAGCHAT_COLLECTION"); v != "" {
		return v
	}
	return DefaultCollection
}

// IngestBatchSize returns the configured ingest batch size, or 0 to let the
// pipeline apply its own default.
func IngestBatchSize() int {
	if v := os.Getenv("INGEST_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
