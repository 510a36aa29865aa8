package main

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

//getDbConnection opens a new database connection. It returns
//util.ErrNoDatabase when no database is configured.
func getDbConnection(ctx util.LogContext) (*sql.DB, error) {
	connStr, err := util.GetDatabaseURL(ctx)
	if err != nil {
		return nil, err
	}

	dbURI, _ := url.Parse(connStr)
	util.LogInfo(ctx, fmt.Sprintf("Creating database connection at: `%s`", dbURI.Redacted()))
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

var getDbConnectionFunc = getDbConnection
