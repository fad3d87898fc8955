package delivery

import "fmt"

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusBusy      Status = "busy"
	StatusFailed    Status = "failed"
)

// Reason classifies a failed delivery for the user-facing notice.
type Reason string

const (
	// ReasonNoSource: the record has no external reference and no local file.
	ReasonNoSource Reason = "no_source"
	// ReasonRepost: the platform copy/forward failed. A failed repost never
	// retries via fetch/local within the same request.
	ReasonRepost Reason = "repost"
	// ReasonNetwork: the remote fetch failed before an HTTP status was read.
	ReasonNetwork Reason = "network"
	// ReasonHTTPStatus: the remote returned a non-200 status.
	ReasonHTTPStatus Reason = "http_status"
	// ReasonIO: local file access or the final send failed.
	ReasonIO Reason = "io"
)

type Outcome struct {
	Status Status
	Reason Reason // set when Status == StatusFailed
	Err    error
}

func Delivered() Outcome { return Outcome{Status: StatusDelivered} }
func Busy() Outcome      { return Outcome{Status: StatusBusy} }

func Failed(reason Reason, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}

// HTTPStatusError reports a non-200 response from the remote host.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}
