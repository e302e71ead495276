package provider

import "fmt"

// StartError reports a non-success provider response when starting a scrape
// job. It is scoped to a single target: the scheduler logs it and moves on
// to the next target in the cycle.
type StartError struct {
	Platform   string
	Target     string
	StatusCode int
	Body       string
}

func (e *StartError) Error() string {
	return fmt.Sprintf("provider refused to start %s job for %q: status %d: %s",
		e.Platform, e.Target, e.StatusCode, e.Body)
}

// FetchError reports a non-success provider response when fetching a
// completed dataset. It is fatal to the current ingestion call and is not
// retried internally; the webhook boundary surfaces it as a non-2xx so the
// provider redelivers on its own schedule.
type FetchError struct {
	DatasetID  string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("provider dataset fetch %q failed: status %d: %s",
		e.DatasetID, e.StatusCode, e.Body)
}
