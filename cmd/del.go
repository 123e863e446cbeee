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
			Use:   "del <database> <key> [value]",
			Short: "Delete a key, or one key-value pair from a dupsort database",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				var val *string
				if len(args) == 3 {
					val = &args[2]
				}
				deleted, err := envDel(env, args[0], args[1], val)
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}
				if !deleted {
					return fmt.Errorf("lmtab: %s: key %s not found", args[0], args[1])
				}
				return nil
			},
		})
}

func envDel(env *table.Env, name, key string, val *string) (bool, error) {
	var deleted bool
	err := env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, name, codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}

			if val != nil {
				deleted, err = tbl.DeleteValue(key, []byte(*val))
			} else {
				deleted, err = tbl.Delete(key)
			}
			return err
		})
	return deleted, err
}
