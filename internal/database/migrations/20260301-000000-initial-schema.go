package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-000000",
		Description: "Initial schema",
		Up: []string{
			// Clients - the accounts every job, document, and chunk hangs off
			`CREATE TABLE IF NOT EXISTS clients (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				company TEXT,
				website TEXT,
				phone TEXT,
				industry TEXT,
				notes TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_clients_email ON clients(email)`,

			// Jobs - scrape and reprocess work items with their lifecycle state
			// parent_job_id links a reprocess job back to the job whose document it reuses
			`CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				client_id TEXT NOT NULL REFERENCES clients(id),
				type TEXT NOT NULL DEFAULT 'scrape',
				parent_job_id TEXT,
				target_url TEXT NOT NULL,
				requested_strategy TEXT NOT NULL DEFAULT 'auto',
				status TEXT NOT NULL DEFAULT 'queued',
				error_stage TEXT,
				error_kind TEXT,
				error_message TEXT,
				pages_fetched INTEGER NOT NULL DEFAULT 0,
				chunks_produced INTEGER NOT NULL DEFAULT 0,
				bytes_extracted INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				started_at TEXT,
				finished_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_client_id ON jobs(client_id)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,

			// Documents - extraction metadata; the full payload lives in the sink
			// keyed by content_hash, so (client_id, content_hash) is the identity
			`CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				client_id TEXT NOT NULL REFERENCES clients(id),
				job_id TEXT,
				source_url TEXT,
				source_type TEXT NOT NULL DEFAULT 'scraped',
				strategy_used TEXT,
				content_hash TEXT NOT NULL,
				title TEXT,
				text_length INTEGER NOT NULL DEFAULT 0,
				fetched_at TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_client_id ON documents(client_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_client_hash ON documents(client_id, content_hash)`,

			// Chunks - embedded text segments, one namespace per client
			// embedding is a little-endian float32 blob
			`CREATE TABLE IF NOT EXISTS chunks (
				client_id TEXT NOT NULL,
				chunk_id TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				source_url TEXT NOT NULL,
				chunk_offset INTEGER NOT NULL DEFAULT 0,
				text TEXT NOT NULL,
				embedding BLOB NOT NULL,
				fetched_at TEXT NOT NULL,
				PRIMARY KEY (client_id, chunk_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chunks_client_hash ON chunks(client_id, content_hash)`,
		},
	})
}
