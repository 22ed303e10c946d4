package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/mr-karan/rosterdb/pkg/client"
)

func main() {
	var (
		f = flag.NewFlagSet("rosterctl", flag.ContinueOnError)

		host       = f.String("host", "127.0.0.1", "Server host to connect to.")
		port       = f.IntP("port", "p", 3333, "Server port to connect to.")
		addString  = f.StringP("add", "a", "", `Add a "Name-Address-Hours" record.`)
		list       = f.BoolP("list", "l", false, "List all records.")
		removeLast = f.BoolP("remove-last", "r", false, "Remove the last record.")
	)

	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}
	if err := f.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *addString == "" && !*list && !*removeLast {
		fmt.Fprintln(os.Stderr, "nothing to do: use --add, --list or --remove-last")
		os.Exit(1)
	}

	c, err := client.Dial(fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error connecting:", err)
		os.Exit(1)
	}
	defer c.Close()

	if *addString != "" {
		if err := c.Add(*addString); err != nil {
			fmt.Fprintln(os.Stderr, "error adding record:", err)
			os.Exit(1)
		}
		fmt.Println("Record added.")
	}

	if *removeLast {
		if err := c.RemoveLast(); err != nil {
			fmt.Fprintln(os.Stderr, "error removing last record:", err)
			os.Exit(1)
		}
		fmt.Println("Last record removed.")
	}

	if *list {
		records, err := c.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error listing records:", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("No records to list.")
			return
		}
		for i := range records {
			r := &records[i]
			fmt.Printf("Record #%d:\n\tName: %s\n\tAddress: %s\n\tHours: %d\n",
				i+1, r.NameString(), r.AddressString(), r.Hours)
		}
	}
}
