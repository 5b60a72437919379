package constants

// UploadStatus is the canonical status of a document upload.
type UploadStatus string

const (
	UploadNotStarted UploadStatus = "NOT_STARTED"
	UploadInProgress UploadStatus = "IN_PROGRESS"
	UploadSucceeded  UploadStatus = "SUCCEEDED"
	UploadFailed     UploadStatus = "FAILED"
)

// JobStatus is the canonical status for rows in extract_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING" // request sent to the extraction service
	JobStatusOK      JobStatus = "OK"      // result received and stored
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)

// JobStatuses lists every JobStatus, for schema enum validation.
var JobStatuses = []string{
	string(JobStatusRunning),
	string(JobStatusOK),
	string(JobStatusFailed),
}

// User-visible status texts.
const (
	StatusTextUploading     = "Uploading..."
	StatusTextUploadOK      = "Upload successful!"
	StatusTextUploadFailed  = "Upload failed. Please try again."
	StatusTextOnlyPDF       = "Only PDF files are allowed!"
	StatusTextGenerating    = "Generating..."
	StatusTextGenerateError = "Could not generate the report. Please try again."
)
