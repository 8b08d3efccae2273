package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/kashifpk/quranref/app/config"
	"github.com/kashifpk/quranref/app/graph"
	"github.com/kashifpk/quranref/app/quran"
	"github.com/kashifpk/quranref/app/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "server":
		runServer()
	case "db":
		runDB()
	case "post-process":
		runPostProcess()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: quranref <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  server        Start the quranref API server")
	fmt.Fprintln(os.Stderr, "  db            Database operations: init, populate-surahs, import-text")
	fmt.Fprintln(os.Stderr, "  post-process  Post-import passes: make-words, fix-word-counts,")
	fmt.Fprintln(os.Stderr, "                update-text-types, remove-bismillah")
}

// openService loads config.json from the data directory and opens the
// graph store, creating the schema if needed.
func openService(dataDir string) (*quran.Service, *graph.Store, *config.QuranConfig, error) {
	if dataDir == "" {
		return nil, nil, nil, fmt.Errorf("--data-dir not provided")
	}
	conf, err := config.Load(dataDir)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := graph.Open(conf.DBPath())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return quran.NewService(store, conf), store, conf, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func runServer() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	var dataDir string
	var serverConf config.ServerRuntimeConfig
	flags.StringVarP(&serverConf.Addr, "address", "a", "localhost", "Server address to bind")
	flags.IntVarP(&serverConf.Port, "port", "p", 8080, "Server port to bind")
	flags.StringVarP(&dataDir, "data-dir", "d", "",
		"data directory with config.json and the graph database")
	flags.StringVar(&serverConf.CertDir, "cert-dir", "", "TLS certificate directory")
	flags.BoolVar(&serverConf.AcmeEnabled, "acme", false, "obtain TLS certificates via ACME")
	flags.BoolVar(&serverConf.BehindLoadBalancer, "behind-lb", false,
		"trust forwarded headers for client IPs")
	flags.IntVar(&serverConf.RateLimit, "rate-limit", 0, "requests per second per client (0 disables)")
	flags.IntVar(&serverConf.GzipLevel, "gzip-level", 0, "gzip compression level (0 disables)")

	flags.Parse(os.Args[2:])

	svc, store, conf, err := openService(dataDir)
	if err != nil {
		fatal("error while initializing service", err)
	}
	defer store.Close()

	fmt.Printf("Starting server on %s:%d\n", serverConf.Addr, serverConf.Port)
	server.StartServer(server.NewController(svc), conf, serverConf)
}

func runDB() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	sub := os.Args[2]

	flags := pflag.NewFlagSet("db "+sub, pflag.ExitOnError)
	var dataDir, file, language, textType string
	flags.StringVarP(&dataDir, "data-dir", "d", "", "data directory")
	flags.StringVarP(&file, "file", "f", "", "input data file")
	flags.StringVarP(&language, "language", "l", "", "language of the imported text")
	flags.StringVarP(&textType, "text-type", "t", "", "text type of the imported text")
	flags.Parse(os.Args[3:])

	svc, store, _, err := openService(dataDir)
	if err != nil {
		fatal("error while initializing service", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch sub {
	case "init":
		// openService already created the schema.
		fmt.Println("Database initialization done.")
	case "populate-surahs":
		if file == "" {
			fatal("db populate-surahs", fmt.Errorf("--file is required"))
		}
		surahs, err := readSurahInfo(file)
		if err != nil {
			fatal("error reading surah info", err)
		}
		if err := svc.PopulateSurahs(ctx, surahs); err != nil {
			fatal("error populating surahs", err)
		}
		fmt.Println("Surahs populated.")
	case "import-text":
		if file == "" || language == "" || textType == "" {
			fatal("db import-text", fmt.Errorf("--file, --language and --text-type are required"))
		}
		if err := svc.ImportTextFile(ctx, file, language, textType); err != nil {
			fatal("error importing text", err)
		}
		fmt.Printf("%s-%s text imported.\n", language, textType)
	default:
		fmt.Fprintf(os.Stderr, "Unknown db subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runPostProcess() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	sub := os.Args[2]

	flags := pflag.NewFlagSet("post-process "+sub, pflag.ExitOnError)
	var dataDir string
	flags.StringVarP(&dataDir, "data-dir", "d", "", "data directory")
	flags.Parse(os.Args[3:])

	svc, store, _, err := openService(dataDir)
	if err != nil {
		fatal("error while initializing service", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch sub {
	case "make-words":
		if err := svc.MakeWords(ctx); err != nil {
			fatal("error rebuilding word index", err)
		}
		fmt.Println("Word index rebuilt.")
	case "fix-word-counts":
		fixed, err := svc.FixWordCounts(ctx)
		if err != nil {
			fatal("error fixing word counts", err)
		}
		fmt.Printf("Fixed %d word counts.\n", fixed)
	case "update-text-types":
		textTypes, err := svc.UpdateTextTypes(ctx)
		if err != nil {
			fatal("error updating text types", err)
		}
		fmt.Printf("Text types updated: %d languages.\n", len(textTypes))
	case "remove-bismillah":
		if err := svc.RemoveBismillah(ctx); err != nil {
			fatal("error removing bismillah", err)
		}
		fmt.Println("Done.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown post-process subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func readSurahInfo(fileName string) ([]quran.Surah, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var surahs []quran.Surah
	dec := json.NewDecoder(f)
	if err := dec.Decode(&surahs); err != nil {
		return nil, fmt.Errorf("error decoding surah info: %w", err)
	}
	return surahs, nil
}
