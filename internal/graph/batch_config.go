package graph

import "time"

// DefaultBatchSize applies when neither the caller nor the config names one
const DefaultBatchSize = 1000

// BatchConfig controls how rows are split into transactions
type BatchConfig struct {
	// BatchSize is the fallback rows per transaction
	BatchSize int
	// LabelBatchSizes overrides BatchSize per node label or relationship type
	LabelBatchSizes map[string]int
	// Timeout bounds each batch transaction; zero uses the operation default
	Timeout time.Duration
	// Metadata is attached to every transaction (run id, stage)
	Metadata map[string]any
}

// DefaultBatchConfig returns a config sized for a few thousand trials
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize: DefaultBatchSize,
		Timeout:   3 * time.Minute,
	}
}

// GetBatchSizeForLabel resolves the batch size for label. An explicit
// positive request wins, then the label override, then BatchSize.
func (bc BatchConfig) GetBatchSizeForLabel(label string, requested int) int {
	if requested > 0 {
		return requested
	}
	if size, ok := bc.LabelBatchSizes[label]; ok && size > 0 {
		return size
	}
	if bc.BatchSize > 0 {
		return bc.BatchSize
	}
	return DefaultBatchSize
}
