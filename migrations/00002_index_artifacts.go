package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up00002, Down00002)
}

//Up00002 indexes artifacts for the flat download route and the sweeper
func Up00002(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_artifacts_filename_created
		ON public.artifacts USING btree
		(filename, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_artifacts_created
		ON public.artifacts USING btree
		(created_at);
		`)
	return err
}

//Down00002 undoes the db changes.
func Down00002(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS public.idx_artifacts_filename_created;
		DROP INDEX IF EXISTS public.idx_artifacts_created;
		`)
	return err
}
