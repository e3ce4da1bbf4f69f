package refresh

import "time"

// DetailCompleted is the detail string every provider report carries,
// whether or not its error list is empty.
const DetailCompleted = "Refresh completed"

// Error classes used in report entries.
const (
	ClassProviderError = "ProviderError"
	ClassUpsertError   = "UpsertError"
)

// ErrorEntry is one captured failure.
type ErrorEntry struct {
	Class   string `json:"exception_class"`
	Message string `json:"exception_message"`
}

// ErrorList accumulates failures for one provider. Exceptions is
// initialized empty so the report always renders a list, never null.
type ErrorList struct {
	Total      int          `json:"total"`
	Exceptions []ErrorEntry `json:"exceptions"`
}

func NewErrorList() ErrorList {
	return ErrorList{Exceptions: []ErrorEntry{}}
}

// Append records one failure.
func (l *ErrorList) Append(class string, err error) {
	l.Total++
	l.Exceptions = append(l.Exceptions, ErrorEntry{
		Class:   class,
		Message: err.Error(),
	})
}

// Meta echoes the resolved run parameters. Times are null when left to
// provider defaults.
type Meta struct {
	Overwrite bool       `json:"overwrite"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// SiteReport is the per-provider result. Processed counts rows that went
// through a committed chunk; dropped counts payloads that failed
// normalization or fell outside the window.
type SiteReport struct {
	Detail    string    `json:"detail"`
	Processed int       `json:"processed"`
	Dropped   int       `json:"dropped"`
	Errors    ErrorList `json:"errors"`
}

// Report is the whole run's result. It is always fully populated: a
// provider that failed outright still has its key present.
type Report struct {
	Meta  Meta                  `json:"meta"`
	Sites map[string]SiteReport `json:"sites"`
}
