package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/table"
)

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "dump <database>",
			Short: "Print every entry in a database in key order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				err = envDump(os.Stdout, env, args[0])
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}
				return nil
			},
		})
}

func envDump(w io.Writer, env *table.Env, name string) error {
	return env.View(
		func(tx *table.Txn) error {
			tbl, err := table.Open(tx, name, codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}

			cr, err := tbl.Cursor()
			if err != nil {
				return err
			}
			defer cr.Close()

			tw := tablewriter.NewWriter(w)
			tw.SetAutoFormatHeaders(false)
			tw.SetHeader([]string{"key", "value"})

			cnt := 0
			entry, ok, err := cr.First()
			for err == nil && ok {
				tw.Append([]string{entry.Key, string(entry.Value.Bytes())})
				cnt += 1
				entry, ok, err = cr.Next()
			}
			if err != nil {
				return err
			}

			tw.Render()
			fmt.Fprintf(w, "(%d entries)\n", cnt)
			return nil
		})
}
