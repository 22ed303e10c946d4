package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zerodha/logf"

	"github.com/mr-karan/rosterdb/internal/server"
	"github.com/mr-karan/rosterdb/pkg/roster"
)

var (
	// Version of the build. This is injected at build-time.
	buildString = "unknown"
)

func main() {
	ko, fl, err := initConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading config:", err)
		os.Exit(1)
	}

	lo := initLogger(ko)
	lo.Debug("starting rosterd", "version", buildString)

	dbFile := fl.dbFile
	if dbFile == "" {
		dbFile = ko.String("db.file")
	}
	if dbFile == "" {
		lo.Fatal("no database file given, use --file or db.file in config")
	}

	batch := fl.addString != "" || fl.list || fl.removeLast

	cfgs := []roster.Config{roster.WithPath(dbFile)}
	if fl.create {
		cfgs = append(cfgs, roster.WithCreate())
	}
	if ko.String("app.log") == "debug" {
		cfgs = append(cfgs, roster.WithDebug())
	}
	// A list-only batch run never rewrites the file.
	if batch && fl.addString == "" && !fl.removeLast && !fl.create {
		cfgs = append(cfgs, roster.WithReadOnly())
	}

	store, err := roster.Init(cfgs...)
	if err != nil {
		lo.Fatal("error opening roster db", "path", dbFile, "error", err)
	}

	if batch {
		runBatch(store, fl, lo)
		return
	}

	port := fl.port
	if port == 0 {
		port = ko.Int("server.port")
	}
	if port == 0 {
		if err := store.Shutdown(); err != nil {
			lo.Error("error closing roster db", "error", err)
		}
		lo.Fatal("no port given, use --port or server.port in config")
	}

	srv := server.New(store, lo, server.Opts{
		Port:       port,
		MaxClients: ko.Int("server.max_clients"),
	})
	if err := srv.Listen(); err != nil {
		lo.Fatal("error starting server", "error", err)
	}

	// The handler side of shutdown does exactly one thing: flag the loop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Stop()
	}()

	runErr := srv.Run()
	if runErr != nil {
		lo.Error("event loop failed", "error", runErr)
	}

	// Persist the in-memory state exactly once, after the loop has exited.
	if err := store.Shutdown(); err != nil {
		lo.Error("error persisting roster db", "error", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// runBatch executes the offline file operations and exits without starting
// the server.
func runBatch(store *roster.Store, fl *flags, lo logf.Logger) {
	fail := func(msg string, err error) {
		if shutdownErr := store.Shutdown(); shutdownErr != nil {
			lo.Error("error closing roster db", "error", shutdownErr)
		}
		lo.Fatal(msg, "error", err)
	}

	if fl.addString != "" {
		if err := store.Add(fl.addString); err != nil {
			fail("error adding record", err)
		}
	}
	if fl.removeLast {
		if err := store.RemoveLast(); err != nil {
			fail("error removing last record", err)
		}
	}
	if fl.list {
		i := 0
		_ = store.Fold(func(r roster.Record) error {
			i++
			fmt.Printf("Record #%d:\n\tName: %s\n\tAddress: %s\n\tHours: %d\n",
				i, r.NameString(), r.AddressString(), r.Hours)
			return nil
		})
		if i == 0 {
			fmt.Println("No records to list.")
		}
	}

	if err := store.Shutdown(); err != nil {
		lo.Fatal("error persisting roster db", "error", err)
	}
}
