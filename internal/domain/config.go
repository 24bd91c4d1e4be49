package domain

// KeyPrefix namespaces every key siteqa writes to a shared key-value store.
const KeyPrefix = "siteqa:"

// ChunkingConfig holds segmentation settings shared by the indexer and the CLI.
type ChunkingConfig struct {
	TargetChars  int
	OverlapChars int
}

// DefaultChunkingConfig returns the window sizes tuned for small local embedding models.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		TargetChars:  700,
		OverlapChars: 120,
	}
}
