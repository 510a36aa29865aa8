package main

import (
	"fmt"

	"github.com/venicegeo/bf-s2-tile-broker/util"
	cli "gopkg.in/urfave/cli.v1"
)

func sweepAction(*cli.Context) error {
	logContext := util.NewBasicLogContext()
	store, closeRegistry, err := newStore(logContext)
	if err != nil {
		return util.LogSimpleErr(logContext, "Could not open the archive store", err)
	}
	defer closeRegistry()

	ctx, stop := appContext()
	defer stop()
	removed, err := store.Sweep(ctx, util.GetArchiveRetention())
	if err != nil {
		return util.LogSimpleErr(logContext, "Sweep failed", err)
	}
	util.LogInfo(logContext, fmt.Sprintf("Removed %d expired archive(s) from %s", removed, store.Root))
	return nil
}
