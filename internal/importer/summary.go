package importer

// DefaultSkippedDetailsLimit bounds the skip reasons echoed back to callers.
const DefaultSkippedDetailsLimit = 10

// Summary is the response body of a batch import.
type Summary struct {
	Msg            string   `json:"msg"`
	Count          int      `json:"count"`
	Created        []string `json:"created"`
	Skipped        int      `json:"skipped"`
	SkippedDetails []string `json:"skipped_details"`
}

// NewSummary reports created labels and skip reasons, keeping only the
// first limit reasons. A non-positive limit uses the default.
func NewSummary(msg string, created, skipped []string, limit int) Summary {
	if limit <= 0 {
		limit = DefaultSkippedDetailsLimit
	}
	if created == nil {
		created = []string{}
	}
	details := skipped
	if len(details) > limit {
		details = details[:limit]
	}
	return Summary{
		Msg:            msg,
		Count:          len(created),
		Created:        created,
		Skipped:        len(skipped),
		SkippedDetails: append([]string{}, details...),
	}
}
