package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260711-091500",
		Description: "Record the low content flag on document metadata",
		Up: []string{
			`ALTER TABLE documents ADD COLUMN low_content INTEGER NOT NULL DEFAULT 0`,
		},
	})
}
