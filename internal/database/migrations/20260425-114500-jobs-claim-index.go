package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260425-114500",
		Description: "Composite index for worker claim queries",
		Up: []string{
			// The claim query filters on status and orders by created_at;
			// the single-column status index forced a scan per poll
			`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at)`,
		},
	})
}
