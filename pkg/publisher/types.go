package publisher

import "time"

// Action records one mutating thing a publish run did, for the final
// summary and for tests.
type Action struct {
	Type        string
	Description string
}

// Result describes a completed publish run.
type Result struct {
	// Committed is true when the deploy branch received a new commit.
	Committed bool

	// CommitHash is the new deploy commit, empty when nothing changed.
	CommitHash string

	// NothingToCommit is true when the build output matched the
	// previous deploy exactly. Still a successful run.
	NothingToCommit bool

	// Pushed is true when the deploy branch was pushed to the remote.
	Pushed bool

	Duration time.Duration
	Actions  []Action
}

func (r *Result) addAction(actionType, description string) {
	r.Actions = append(r.Actions, Action{Type: actionType, Description: description})
}
