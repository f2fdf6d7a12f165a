package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260530-162000",
		Description: "Add notify_url for signed job completion callbacks",
		Up: []string{
			`ALTER TABLE jobs ADD COLUMN notify_url TEXT`,
		},
	})
}
