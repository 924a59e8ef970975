package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// syncTimeout allows a full read of the bank: master, control, every filter
// and then every band parameter, each bounded by the request timeout.
func syncTimeout(request time.Duration) time.Duration {
	return 4 * request
}

func dumpCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Read the whole equalizer and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, _, err := a.openDevice()
			if err != nil {
				return err
			}
			defer dev.Shutdown()

			syncErr := dev.Sync(syncTimeout(a.settings.Session.RequestTimeout))

			data, err := json.MarshalIndent(dev.Session().Snapshot(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, string(data))
			return syncErr
		},
	}
}
