package postgresql

// migrations returns the versioned schema statements applied by the migration
// manager. Never edit an existing version; add a new one.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL,
				object_type TEXT NOT NULL,
				entry_criteria JSONB NOT NULL DEFAULT '{}'::jsonb,
				reentry_mode TEXT NOT NULL,
				reentry_wait_days INTEGER NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				steps JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_object_type_active
				ON workflows (object_type) WHERE is_active;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_runs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows (id),
				object_type TEXT NOT NULL,
				target_record_id TEXT NOT NULL,
				status TEXT NOT NULL,
				current_step_key TEXT NOT NULL,
				wait_until TIMESTAMP WITH TIME ZONE,
				entered_at TIMESTAMP WITH TIME ZONE NOT NULL,
				last_transitioned_at TIMESTAMP WITH TIME ZONE NOT NULL,
				history JSONB NOT NULL DEFAULT '[]'::jsonb
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow
				ON workflow_runs (workflow_id);

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_workflow_record
				ON workflow_runs (workflow_id, target_record_id);

			CREATE INDEX IF NOT EXISTS idx_workflow_runs_due
				ON workflow_runs (wait_until) WHERE status = 'waiting';
		`,
	}
}
