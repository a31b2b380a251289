package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status <center-id>",
	Short: "Show a center's current operating status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initService(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		c, res, err := env.Service.CenterStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		formatStatus(cmd.OutOrStdout(), c, res)
		return nil
	},
}

// formatStatus writes a center's status summary to out.
func formatStatus(out io.Writer, c *model.Center, res status.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Center:\t%s (%s)\n", c.Name, c.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", res.Detail.Status)
	_, _ = fmt.Fprintf(w, "Score:\t%d\n", res.Score)
	_, _ = fmt.Fprintf(w, "Message:\t%s\n", res.Detail.Message)
	if n := res.Detail.NextOpen; n != nil {
		_, _ = fmt.Fprintf(w, "Next open:\t%s %s %s\n", n.Weekday, n.Date, n.OpenTime)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
