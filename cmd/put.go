package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/codec"
	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/table"
)

var (
	putNoOverwrite = false
	putAppend      = false
)

func init() {
	putCmd := &cobra.Command{
		Use:   "put <database> <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags storage.PutFlags
			if putNoOverwrite {
				flags |= storage.NoOverwrite
			}
			if putAppend {
				flags |= storage.Append
			}

			env, err := openEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			err = envPut(env, args[0], args[1], args[2], flags)
			if err != nil {
				return fmt.Errorf("lmtab: %s", err)
			}
			return nil
		},
	}

	fs := putCmd.Flags()
	fs.BoolVar(&putNoOverwrite, "no-overwrite", putNoOverwrite,
		"fail if the key is already present")
	fs.BoolVar(&putAppend, "append", putAppend,
		"require the key to sort after every existing key")

	lmtabCmd.AddCommand(putCmd)
}

func envPut(env *table.Env, name, key, val string, flags storage.PutFlags) error {
	return env.Update(
		func(tx *table.WriteTxn) error {
			tbl, err := table.OpenWrite(tx, name, codec.String{}, codec.Raw{})
			if err != nil {
				return err
			}
			return tbl.PutWith(key, []byte(val), flags)
		})
}
