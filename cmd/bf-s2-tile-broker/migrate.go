package main

import (
	"github.com/pressly/goose"
	cli "gopkg.in/urfave/cli.v1"

	_ "github.com/venicegeo/bf-s2-tile-broker/migrations"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

func migrateDatabaseAction(*cli.Context) error {
	logContext := util.NewBasicLogContext()
	database, err := getDbConnectionFunc(logContext)
	if err != nil {
		return util.LogSimpleErr(logContext, "Could not open database connection", err)
	}
	defer database.Close()

	if err = goose.Run("up", database, "."); err != nil {
		return util.LogSimpleErr(logContext, "Migration failed", err)
	}
	util.LogInfo(logContext, "Database schema is up to date")
	return nil
}
