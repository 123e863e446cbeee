package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/table"
)

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "stat [database...]",
			Short: "Print statistics for databases; defaults to those in the config file",
			RunE: func(cmd *cobra.Command, args []string) error {
				names := args
				if len(names) == 0 {
					dbs, err := configDatabases()
					if err != nil {
						return fmt.Errorf("lmtab: %s", err)
					}
					for _, db := range dbs {
						names = append(names, db.Name)
					}
				}
				if len(names) == 0 {
					return fmt.Errorf("lmtab: no databases specified or configured")
				}

				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				err = envStat(os.Stdout, env, names)
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}
				return nil
			},
		})
}

func envStat(w io.Writer, env *table.Env, names []string) error {
	return env.View(
		func(tx *table.Txn) error {
			tw := tablewriter.NewWriter(w)
			tw.SetAutoFormatHeaders(false)
			tw.SetHeader([]string{"database", "flags", "entries", "depth", "branch", "leaf",
				"overflow"})

			for _, name := range names {
				tbl, err := table.Open(tx, name, codec.String{}, codec.Raw{})
				if err != nil {
					return err
				}
				stat, err := tbl.Stat()
				if err != nil {
					return err
				}

				tw.Append([]string{
					name,
					tbl.Flags().String(),
					strconv.FormatUint(stat.Entries, 10),
					strconv.FormatUint(uint64(stat.Depth), 10),
					strconv.FormatUint(stat.BranchPages, 10),
					strconv.FormatUint(stat.LeafPages, 10),
					strconv.FormatUint(stat.OverflowPages, 10),
				})
			}

			tw.Render()
			return nil
		})
}
