package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/ufdrlab-backend/internal/app"
)

// graphadmin drives the evidence graph without going through the HTTP API:
//
//	graphadmin resync [-clear]     rebuild the graph from the relational store
//	graphadmin reset               wipe all Person/Image nodes
//	graphadmin fetch [term]        print a graph view as JSON
func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()
	gsvc := application.Services.GraphSync
	if !gsvc.Enabled() {
		fmt.Println("evidence graph is not configured (set NEO4J_URI)")
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "resync":
		fs := flag.NewFlagSet("resync", flag.ExitOnError)
		clear := fs.Bool("clear", false, "clear the graph before syncing")
		_ = fs.Parse(flag.Args()[1:])

		stats, err := gsvc.Resync(ctx, *clear)
		if err != nil {
			fmt.Printf("resync: %v\n", err)
			os.Exit(1)
		}
		printJSON(stats)

	case "reset":
		if err := gsvc.Reset(ctx); err != nil {
			fmt.Printf("reset: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("graph cleared")

	case "fetch":
		fs := flag.NewFlagSet("fetch", flag.ExitOnError)
		limit := fs.Int("limit", 0, "max edges to return")
		_ = fs.Parse(flag.Args()[1:])

		term := ""
		if fs.NArg() > 0 {
			term = fs.Arg(0)
		}
		view, err := gsvc.FetchGraph(ctx, term, *limit)
		if err != nil {
			fmt.Printf("fetch: %v\n", err)
			os.Exit(1)
		}
		printJSON(view)

	default:
		usage()
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("encode output: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: graphadmin <resync [-clear] | reset | fetch [-limit n] [term]>\n")
}
