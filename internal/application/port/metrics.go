package port

import "time"

// PipelineMetrics records pipeline outcomes
type PipelineMetrics interface {
	DocumentSubmitted(status string)
	ExtractionObserved(outcome string, elapsed time.Duration)
	DownloadAttempted(strategy string, success bool)
	TaxCalculated(recommendation string)
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) DocumentSubmitted(string)                 {}
func (NopMetrics) ExtractionObserved(string, time.Duration) {}
func (NopMetrics) DownloadAttempted(string, bool)           {}
func (NopMetrics) TaxCalculated(string)                     {}

var _ PipelineMetrics = NopMetrics{}
