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
			Use:   "get <database> <key>",
			Short: "Look up the value stored for a key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				val, ok, err := envGet(env, args[0], args[1])
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}
				if !ok {
					return fmt.Errorf("lmtab: %s: key %s not found", args[0], args[1])
				}
				fmt.Println(val)
				return nil
			},
		})
}

func envGet(env *table.Env, name, key string) (string, bool, error) {
	var val string
	var ok bool
	err := env.View(
		func(tx *table.Txn) error {
			tbl, err := table.Open(tx, name, codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}

			v, found, err := tbl.GetValue(key)
			if err != nil {
				return err
			}
			val, ok = string(v), found
			return nil
		})
	return val, ok, err
}
