package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/agenthands/ctigraph/internal/config"
	"github.com/agenthands/ctigraph/internal/server"
)

func main() {
	cfgPath := flag.String("config", "config/config.toml", "path to the TOML config")
	dryRun := flag.Bool("dry-run", false, "extract and print the query without connecting to or loading the graph")
	actor := flag.String("actor", "", "print the graph profile of a threat actor and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ctigraph [-config path] [-dry-run] report.(pdf|txt|md)\n       ctigraph [-config path] -actor name\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *actor == "" && flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if *dryRun && *actor == "" {
		cfg.Neo4j.URI = ""
	}

	ctx := context.Background()
	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer srv.Close()

	if *actor != "" {
		profile, err := srv.Graph.ActorProfile(ctx, *actor)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *actor, err)
		}
		printJSON(profile)
		return
	}

	path := flag.Arg(0)
	parsed, err := srv.Parsers.ParseFile(ctx, path)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	analysis, err := srv.Graph.ProcessReport(ctx, filepath.Base(path), parsed.Format, parsed.Sections, !*dryRun)
	if err != nil {
		log.Fatalf("Failed to process %s: %v", path, err)
	}

	for _, r := range analysis.Results {
		fmt.Printf("\nExtracted Data for %s:\n", r.Category)
		if r.Failed() {
			fmt.Printf("{\"error\": %q}\n", r.Error)
			continue
		}
		fmt.Println(string(r.Data))
	}

	fmt.Println("\nParameters:")
	printJSON(analysis.Parameters)

	if analysis.Statement == nil {
		fmt.Printf("\nNothing to load: %s\n", analysis.Skipped)
		return
	}
	fmt.Printf("\nConstructed Query:\n%s\n", analysis.Statement.Query)
	if analysis.Load != nil {
		fmt.Printf("\nData loaded: %d nodes, %d relationships created\n", analysis.Load.NodesCreated, analysis.Load.RelationshipsCreated)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}
