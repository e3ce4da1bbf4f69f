package messaging

// Broker subjects.
const (
	// SubjectRefreshRequest triggers an ingestion run.
	SubjectRefreshRequest = "refresh.request"
	// SubjectRefreshCompleted carries the report of a finished run.
	SubjectRefreshCompleted = "refresh.completed"
)

// RefreshRequestMessage mirrors the query parameters of the refresh HTTP
// endpoint. Times are RFC3339 strings; empty means the default window.
type RefreshRequestMessage struct {
	Overwrite bool   `json:"overwrite"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}
