package migration

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(Up00001, Down00001)
}

//Up00001 creates the archive registry table
func Up00001(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS public.artifacts
		(
			id uuid NOT NULL,
			filename character varying(128) NOT NULL,
			mode character varying(16) NOT NULL,
			tiles text[] NOT NULL DEFAULT '{}',
			path text NOT NULL,
			size bigint NOT NULL DEFAULT 0,
			created_at timestamp with time zone NOT NULL DEFAULT now(),
			CONSTRAINT artifacts_pkey PRIMARY KEY (id)
		);
		`)
	return err
}

//Down00001 undoes the db changes.
func Down00001(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS public.artifacts;`)
	return err
}
