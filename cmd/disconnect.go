package cmd

import (
	"github.com/spf13/cobra"
)

func newDisconnectCmd() *cobra.Command {
	var keepEvents bool

	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Unlink the calendar account and remove synced events",
		Long: `Disconnect deletes every event the engine created, clears the mapping
ledger, revokes the stored OAuth2 token with the provider, and removes the
token locally. Revocation is best effort; the local state is cleared even
when the provider cannot be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if keepEvents {
				if err := app.store.DeleteAllMappings(ctx); err != nil {
					return err
				}
				settings, err := app.store.GetSettings(ctx)
				if err != nil {
					return err
				}
				settings.Connected = false
				if err := app.store.PutSettings(ctx, settings); err != nil {
					return err
				}
			} else {
				syncer, err := app.newSyncer(ctx)
				if err != nil {
					return err
				}
				if err := syncer.Disconnect(ctx); err != nil {
					return err
				}
			}
			if err := app.manager.Disconnect(ctx); err != nil {
				return err
			}
			cmd.Println("Calendar disconnected.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepEvents, "keep-events", false, "leave synced events on the calendar")
	return cmd
}
