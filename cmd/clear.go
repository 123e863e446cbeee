package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/table"
)

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "clear <database>",
			Short: "Remove every entry in a database",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				err = envClear(env, args[0])
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}
				return nil
			},
		})
}

func envClear(env *table.Env, name string) error {
	return env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, name, codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}
			return tbl.Clear()
		})
}
