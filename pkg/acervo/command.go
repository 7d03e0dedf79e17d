package acervo

// Command is one operation of the acervo binary. Parse returns one and Main
// dispatches it to the matching method of [App].
type Command interface {
	Name() string
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

// MigrateCommand prepares the schema of the configured backend, both stores in cqrs mode.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// SyncCommand copies documents changed in [Since, Until) from one backend of a
// cqrs deployment to the other.
//
// Direction "forward" copies PostgreSQL to SurrealDB; "reverse" copies back.
// Since and Until are RFC3339 times; empty Since means 24 hours ago and empty
// Until means now.
type SyncCommand struct {
	Direction string
	Since     string
	Until     string
}

func (c *SyncCommand) Name() string {
	return "sync"
}

// RecomputeStatsCommand rebuilds the statistics snapshot.
type RecomputeStatsCommand struct{}

func (c *RecomputeStatsCommand) Name() string {
	return "recompute-stats"
}
