package download

import "fmt"

// FailReason classifies how a download session ended short of completion.
type FailReason string

const (
	FailQuotaDenied         FailReason = "quota_denied"
	FailMetadataFetchFailed FailReason = "metadata_fetch_failed"
	FailDownloadFailed      FailReason = "download_failed"
	FailFileNotFound        FailReason = "file_not_found"
	FailTooLarge            FailReason = "too_large"
	FailUploadFailed        FailReason = "upload_failed"
	FailTimeout             FailReason = "timeout"
)

// SessionError is the terminal error of a failed download session. UserText
// is what the requesting user sees; Err carries the underlying cause.
type SessionError struct {
	Reason   FailReason
	UserText string
	Err      error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session failed (%s)", e.Reason)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
