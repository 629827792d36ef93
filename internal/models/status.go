package models

// Pipeline stages reported through the processing-status table.
const (
	StageStarting    = "starting"
	StageExtracting  = "extracting"
	StageChunking    = "chunking"
	StageVectorizing = "vectorizing"
)

// ProcessingStatus is the live progress of one in-flight pipeline run.
// An entry exists only while the run is in flight; absence means the run
// either never started or already finished.
type ProcessingStatus struct {
	Stage    string `json:"stage"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
}
