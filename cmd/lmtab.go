package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lmtab/lmtab/storage"
	"github.com/lmtab/lmtab/storage/bolt"
	"github.com/lmtab/lmtab/storage/lmdb"
	"github.com/lmtab/lmtab/storage/memory"
	"github.com/lmtab/lmtab/table"
)

var (
	lmtabCmd = &cobra.Command{
		Use:               "lmtab",
		Short:             "A typed key-value store",
		Long:              "Lmtab is a typed access layer over LMDB-class key-value engines.",
		PersistentPreRunE: lmtabPreRun,
		PersistentPostRun: lmtabPostRun,
	}

	logFile   = "lmtab.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "lmtab.hcl"
	noConfig   = false

	store      = "lmdb"
	dataDir    = "data"
	mapSize    = int64(0)
	maxDBs     = 16
	maxReaders = 0
	noSync     = false

	cfgVars   = map[string]*pflag.Flag{}
	cfg       = map[string]interface{}{}
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := lmtabCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")

	fs.StringVar(&store, "store", store, "storage engine to use: lmdb, bolt, or memory")
	cfgVars["store"] = fs.Lookup("store")

	fs.StringVar(&dataDir, "data", dataDir, "`directory` containing the store")
	cfgVars["data"] = fs.Lookup("data")

	fs.Int64Var(&mapSize, "map-size", mapSize, "memory map size in `bytes` (lmdb)")
	cfgVars["map-size"] = fs.Lookup("map-size")

	fs.IntVar(&maxDBs, "max-dbs", maxDBs, "maximum `number` of named databases (lmdb)")
	cfgVars["max-dbs"] = fs.Lookup("max-dbs")

	fs.IntVar(&maxReaders, "max-readers", maxReaders,
		"maximum `number` of concurrent readers (lmdb)")
	cfgVars["max-readers"] = fs.Lookup("max-readers")

	fs.BoolVar(&noSync, "no-sync", noSync, "don't sync commits to disk")
	cfgVars["no-sync"] = fs.Lookup("no-sync")

	cfgVars["databases"] = nil
}

func Execute() error {
	return lmtabCmd.Execute()
}

func lmtabPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig()
		if err != nil {
			return fmt.Errorf("lmtab: %s", err)
		}
	}

	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("lmtab: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("lmtab: %s", err)
	}
	log.SetLevel(ll)

	log.WithField("pid", os.Getpid()).Info("lmtab starting")
	return nil
}

func lmtabPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("lmtab done")

	if logWriter != nil {
		logWriter.Close()
	}
}

func loadConfig() error {
	b, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		flg, ok := cfgVars[name]
		if !ok {
			return fmt.Errorf("%s is not a config variable", name)
		}
		if flg == nil {
			continue
		}
		if _, ok := usedFlags[flg.Name]; ok {
			continue
		}
		err := flg.Value.Set(fmt.Sprintf("%v", val))
		if err != nil {
			return fmt.Errorf("%s: %s", name, err)
		}
	}

	return nil
}

// configDatabases parses the databases list from the config file:
//
//	databases = [
//	    { name = "users" },
//	    { name = "tags", flags = ["dupsort"] },
//	]
func configDatabases() ([]lmdb.Database, error) {
	val := cfg["databases"]
	if val == nil {
		return nil, nil
	}
	slice, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("databases: expected a list; got %v", val)
	}

	var dbs []lmdb.Database
	for _, obj := range slice {
		decl, ok := obj.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("databases: expected an object; got %v", obj)
		}
		name, ok := decl["name"].(string)
		if !ok {
			return nil, fmt.Errorf("databases: missing name: %v", obj)
		}

		var flags storage.DBFlags
		if fv, ok := decl["flags"]; ok {
			fl, ok := fv.([]interface{})
			if !ok {
				return nil, fmt.Errorf("databases: %s: expected a list of flags; got %v",
					name, fv)
			}
			var names []string
			for _, f := range fl {
				s, ok := f.(string)
				if !ok {
					return nil, fmt.Errorf("databases: %s: expected a flag name; got %v",
						name, f)
				}
				names = append(names, s)
			}
			var err error
			flags, err = storage.ParseDBFlags(names)
			if err != nil {
				return nil, fmt.Errorf("databases: %s: %s", name, err)
			}
		}

		dbs = append(dbs, lmdb.Database{Name: name, Flags: flags})
	}
	return dbs, nil
}

func openEngine() (storage.Engine, error) {
	dbs, err := configDatabases()
	if err != nil {
		return nil, err
	}

	var eng storage.Engine
	switch store {
	case "lmdb":
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("lmtab: %s", err)
		}
		eng, err = lmdb.Open(dataDir,
			lmdb.Options{
				MapSize:    mapSize,
				MaxDBs:     maxDBs,
				MaxReaders: maxReaders,
				NoSync:     noSync,
				Databases:  dbs,
			})
		if err != nil {
			return nil, fmt.Errorf("lmtab: %s", err)
		}
		return eng, nil
	case "bolt":
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("lmtab: %s", err)
		}
		eng, err = bolt.Open(dataDir, bolt.Options{NoSync: noSync})
	case "memory":
		eng = memory.NewEngine()
	default:
		return nil, fmt.Errorf("lmtab: got %s for store; want lmdb, bolt, or memory", store)
	}
	if err != nil {
		return nil, fmt.Errorf("lmtab: %s", err)
	}

	for _, db := range dbs {
		_, err = eng.OpenDBI(db.Name, db.Flags|storage.Create)
		if err != nil {
			eng.Close()
			return nil, fmt.Errorf("lmtab: %s: %s", db.Name, err)
		}
	}
	return eng, nil
}

func openEnv() (*table.Env, error) {
	eng, err := openEngine()
	if err != nil {
		return nil, err
	}
	return table.NewEnv(eng), nil
}
