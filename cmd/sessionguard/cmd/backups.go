package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var backupsJSON bool

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List the recorded session backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openBackupStore(cfg.Watch)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List()
		if err != nil {
			return fmt.Errorf("reading backup ledger: %w", err)
		}

		out := cmd.OutOrStdout()
		if backupsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No backups recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BACKUP ID\tSAVED\tKIND")
		for _, rec := range list {
			kind := "auto"
			if rec.Manual {
				kind = "manual"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.BackupID, rec.Timestamp.Local().Format(time.DateTime), kind)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(backupsCmd)
	backupsCmd.Flags().BoolVar(&backupsJSON, "json", false, "Print the ledger as JSON")
}
