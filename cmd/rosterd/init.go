package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/zerodha/logf"
)

// flags holds the parsed command line surface of rosterd.
type flags struct {
	dbFile     string
	port       int
	create     bool
	addString  string
	list       bool
	removeLast bool
}

// initLogger initializes logger instance.
func initLogger(ko *koanf.Koanf) logf.Logger {
	opts := logf.Opts{EnableCaller: true}
	if ko.String("app.log") == "debug" {
		opts.Level = logf.DebugLevel
		opts.EnableColor = true
	}
	return logf.New(opts)
}

// initConfig loads config to `ko` object and parses the command line.
func initConfig() (*koanf.Koanf, *flags, error) {
	var (
		ko = koanf.New(".")
		f  = flag.NewFlagSet("rosterd", flag.ContinueOnError)
		fl = &flags{}
	)

	// Configure Flags.
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	// Register flags.
	cfgPath := f.String("config", "config.sample.toml", "Path to a config file to load.")
	f.StringVarP(&fl.dbFile, "file", "f", "", "Path to the database file.")
	f.IntVarP(&fl.port, "port", "p", 0, "Port for the server to listen on.")
	f.BoolVarP(&fl.create, "new", "n", false, "Create a new database file.")
	f.StringVarP(&fl.addString, "add", "a", "", `Add a "Name-Address-Hours" record and exit.`)
	f.BoolVarP(&fl.list, "list", "l", false, "List all records and exit.")
	f.BoolVarP(&fl.removeLast, "remove-last", "r", false, "Remove the last record and exit.")

	// Parse and Load Flags.
	err := f.Parse(os.Args[1:])
	if err != nil {
		return nil, nil, err
	}

	// The config file is optional; batch invocations typically run on flags
	// alone.
	if _, statErr := os.Stat(*cfgPath); statErr == nil {
		err = ko.Load(file.Provider(*cfgPath), toml.Parser())
		if err != nil {
			return nil, nil, err
		}
	}
	err = ko.Load(env.Provider("ROSTERDB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ROSTERDB_")), "__", ".", -1)
	}), nil)
	if err != nil {
		return nil, nil, err
	}
	return ko, fl, nil
}
