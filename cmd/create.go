package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/storage"
)

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "create <database> [flag...]",
			Short: "Create a database; flags: dupsort, dupfixed, integerkey, " +
				"integerdup, reversekey, reversedup",
			Args: cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				flags, err := storage.ParseDBFlags(args[1:])
				if err != nil {
					return fmt.Errorf("lmtab: %s", err)
				}

				eng, err := openEngine()
				if err != nil {
					return err
				}
				defer eng.Close()

				_, err = eng.OpenDBI(args[0], flags|storage.Create)
				if err != nil {
					return fmt.Errorf("lmtab: %s: %s", args[0], err)
				}
				return nil
			},
		})
}
