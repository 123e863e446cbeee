package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/table"
)

const lmtabHistory = ".lmtab_history"

func init() {
	lmtabCmd.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Interactive shell over the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := openEnv()
				if err != nil {
					return err
				}
				defer env.Close()

				shell(env)
				return nil
			},
		})
}

func shell(env *table.Env) {
	line := liner.NewLiner()
	defer line.Close()

	if f, err := os.Open(lmtabHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		s, err := line.Prompt("lmtab: ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "lmtab: %s\n", err)
			break
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		line.AppendHistory(s)

		if !shellCommand(env, strings.Fields(s)) {
			break
		}
	}

	if f, err := os.Create(lmtabHistory); err != nil {
		fmt.Fprintf(os.Stderr, "lmtab: error writing history file, %s: %s\n", lmtabHistory,
			err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}

func shellCommand(env *table.Env, fields []string) bool {
	cmd, args := fields[0], fields[1:]

	fail := func(err error) bool {
		fmt.Fprintf(os.Stderr, "lmtab: %s\n", err)
		return true
	}
	usage := func(use string) bool {
		fmt.Fprintf(os.Stderr, "usage: %s\n", use)
		return true
	}

	switch cmd {
	case "get":
		if len(args) != 2 {
			return usage("get <database> <key>")
		}
		val, ok, err := envGet(env, args[0], args[1])
		if err != nil {
			return fail(err)
		}
		if !ok {
			fmt.Printf("%s: key %s not found\n", args[0], args[1])
		} else {
			fmt.Println(val)
		}

	case "put":
		if len(args) != 3 {
			return usage("put <database> <key> <value>")
		}
		if err := envPut(env, args[0], args[1], args[2], 0); err != nil {
			return fail(err)
		}

	case "del":
		if len(args) != 2 && len(args) != 3 {
			return usage("del <database> <key> [value]")
		}
		var val *string
		if len(args) == 3 {
			val = &args[2]
		}
		deleted, err := envDel(env, args[0], args[1], val)
		if err != nil {
			return fail(err)
		}
		if !deleted {
			fmt.Printf("%s: key %s not found\n", args[0], args[1])
		}

	case "clear":
		if len(args) != 1 {
			return usage("clear <database>")
		}
		if err := envClear(env, args[0]); err != nil {
			return fail(err)
		}

	case "dump":
		if len(args) != 1 {
			return usage("dump <database>")
		}
		if err := envDump(os.Stdout, env, args[0]); err != nil {
			return fail(err)
		}

	case "stat":
		if len(args) == 0 {
			return usage("stat <database>...")
		}
		if err := envStat(os.Stdout, env, args); err != nil {
			return fail(err)
		}

	case "create":
		if len(args) < 1 {
			return usage("create <database> [flag...]")
		}
		flags, err := storage.ParseDBFlags(args[1:])
		if err != nil {
			return fail(err)
		}
		if _, err := env.Engine().OpenDBI(args[0], flags|storage.Create); err != nil {
			return fail(err)
		}

	case "help":
		fmt.Println("commands: get, put, del, clear, dump, stat, create, help, exit")

	case "exit", "quit":
		return false

	default:
		fmt.Fprintf(os.Stderr, "lmtab: unknown command: %s; try help\n", cmd)
	}

	return true
}
