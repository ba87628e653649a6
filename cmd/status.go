package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection state and sync settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			settings, err := app.store.GetSettings(ctx)
			if err != nil {
				return err
			}
			connected, err := app.manager.Connected(ctx)
			if err != nil {
				return err
			}
			count, err := app.store.CountMappings(ctx)
			if err != nil {
				return err
			}

			onOff := func(v bool) string {
				if v {
					return "on"
				}
				return "off"
			}

			cmd.Printf("Provider:        %s\n", app.cfg.Provider)
			if connected {
				cmd.Println("Connection:      connected")
			} else {
				cmd.Println("Connection:      not connected")
			}
			cmd.Printf("Tracked events:  %d\n", count)
			if settings.LastSyncAt != nil {
				cmd.Printf("Last full sync:  %s\n", settings.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
			} else {
				cmd.Println("Last full sync:  never")
			}
			cmd.Printf("Sync tasks:      %s\n", onOff(settings.SyncTasks))
			cmd.Printf("Sync birthdays:  %s\n", onOff(settings.SyncBirthdays))
			cmd.Printf("Sync dates:      %s\n", onOff(settings.SyncImportantDates))
			cmd.Printf("Sync follow-ups: %s\n", onOff(settings.SyncFollowUps))
			return nil
		},
	}
	return cmd
}
