package session

// State identifies where the console session is in its lifecycle.
type State string

const (
	// StateUnauthenticated means no valid credential is live.
	StateUnauthenticated State = "unauthenticated"

	// StateExperimentsLoading means the experiment list fetch for the
	// selected application is in flight.
	StateExperimentsLoading State = "experiments_loading"

	// StateExperimentsLoaded means the list is loaded and no summary
	// is selected or loading.
	StateExperimentsLoaded State = "experiments_loaded"

	// StateSummaryLoading means a summary fetch is in flight.
	StateSummaryLoading State = "summary_loading"

	// StateSummaryLoaded means the current selection's snapshot is
	// live.
	StateSummaryLoaded State = "summary_loaded"

	// StateSummaryError means the last summary fetch failed while the
	// session was still authenticated.
	StateSummaryError State = "summary_error"
)
