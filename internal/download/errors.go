package download

import "fmt"

// ValidationError rejects a request before any job is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PlatformError rejects a URL outside the supported set. ComingSoon marks
// the recognized-but-not-yet-supported platforms; callers may surface those
// non-fatally. No job exists in either case.
type PlatformError struct {
	Platform   string
	ComingSoon bool
}

func (e *PlatformError) Error() string {
	if e.ComingSoon {
		return fmt.Sprintf("support for %s is coming soon", e.Platform)
	}
	return "unsupported platform, only YouTube is supported"
}

// ExtractionError records a failed or artifact-less extraction attempt.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// SizeLimitError reports the post-download size check: the artifact exceeded
// the requested ceiling and has already been deleted.
type SizeLimitError struct {
	SizeMB  float64
	LimitMB int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("file (%.1f MB) exceeds the %d MB limit and was removed", e.SizeMB, e.LimitMB)
}
