package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lalmajed/citysh/lib/sqliteutil"
	"github.com/lalmajed/citysh/lib/telemetry"
)

type SetupParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type SetupResult struct {
	DB *sql.DB
}

func Setup(t testing.TB, params SetupParams) (SetupResult, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	var db *sql.DB
	if params.DbSchema != "" {
		dbpath := params.DbPath
		if dbpath == "" {
			dbpath = ":memory:"
		}
		var err error
		db, err = sqliteutil.OpenDB(params.DbSchema, dbpath)
		if err != nil {
			t.Fatal(err)
		}
	}

	return SetupResult{DB: db}, cleanup
}
