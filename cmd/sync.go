package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every task and contact against the calendar",
		Long: `Sync walks all schedulable tasks and all contacts and pushes each one to
the calendar, creating or updating events as needed. Individual failures are
collected and reported without stopping the pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			connected, err := app.manager.Connected(ctx)
			if err != nil {
				return err
			}
			if !connected {
				return errors.New("no calendar connected, run 'tethru connect' first")
			}

			syncer, err := app.newSyncer(ctx)
			if err != nil {
				return err
			}

			taskSource, contactSource := app.sources()
			tasks, err := taskSource.Snapshot(ctx)
			if err != nil {
				return err
			}
			contacts, err := contactSource.Snapshot(ctx)
			if err != nil {
				return err
			}

			result, err := syncer.FullSync(ctx, tasks, contacts)
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Success() {
				return errors.New("sync completed with errors")
			}
			return nil
		},
	}
	return cmd
}
