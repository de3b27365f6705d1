package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// itsSync creates or refreshes the users of itsIDs, reporting every failure but stopping at none.
func (cli *commandLine) itsSync(itsIDs []string) error {
	ctx := context.Background()
	var failed int
	for _, id := range itsIDs {
		usr, err := cli.usrSvc.SyncFromITS(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(cli.out, "%s: %v\n", id, err)
			continue
		}
		fmt.Fprintf(cli.out, "%s: synced %s\n", id, usr.Name)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d ITS IDs failed to sync", failed, len(itsIDs))
	}
	return nil
}
