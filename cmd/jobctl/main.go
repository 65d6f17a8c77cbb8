// Command jobctl runs one scrape or search against the local corpus and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"jobfinder-engine/internal/app"
	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/logger"
)

const usage = `usage: jobctl [-config path] <command> [flags]

commands:
  scrape  -position P -location L [-pages N]
  search  [-position P] [-experience E] [-salary S] [-nature N] [-location L] [-skills a,b]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "jobctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := flag.NewFlagSet("jobctl", flag.ContinueOnError)
	root.SetOutput(stderr)
	root.Usage = func() { fmt.Fprint(stderr, usage) }
	cfgPath := root.String("config", "config/config.yml", "path to the YAML config file")
	verbose := root.Bool("v", false, "log to stderr at debug level")
	if err := root.Parse(args); err != nil {
		return err
	}
	if root.NArg() == 0 {
		root.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Load("")
	}
	if err != nil {
		return err
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		return v
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, closeLog, err := logger.New(logger.Config{Level: level, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}
	defer closeLog()

	cmd, rest := root.Arg(0), root.Args()[1:]
	switch cmd {
	case "scrape":
		q, err := parseScrape(rest, stderr)
		if err != nil {
			return err
		}
		a, err := app.Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Pipeline.Run(ctx, q.Position, q.Location, q.Pages)
		if err != nil {
			return err
		}
		return printJSON(stdout, res)

	case "search":
		crit, err := parseSearch(rest, stderr)
		if err != nil {
			return err
		}
		a, err := app.Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return printJSON(stdout, a.Searcher.Search(ctx, crit))

	default:
		root.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func parseScrape(args []string, stderr io.Writer) (config.Query, error) {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var q config.Query
	fs.StringVar(&q.Position, "position", "", "job title to search for")
	fs.StringVar(&q.Location, "location", "", "where to search")
	fs.IntVar(&q.Pages, "pages", 1, "result pages per source")
	if err := fs.Parse(args); err != nil {
		return q, err
	}
	if q.Position == "" || q.Location == "" {
		return q, fmt.Errorf("%w: -position and -location are required", domain.ErrInvalidRequest)
	}
	return q, nil
}

func parseSearch(args []string, stderr io.Writer) (domain.SearchCriteria, error) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c domain.SearchCriteria
	fs.StringVar(&c.Position, "position", "", "")
	fs.StringVar(&c.Experience, "experience", "", "")
	fs.StringVar(&c.Salary, "salary", "", "")
	fs.StringVar(&c.JobNature, "nature", "", "onsite, remote or hybrid")
	fs.StringVar(&c.Location, "location", "", "")
	fs.StringVar(&c.Skills, "skills", "", "comma separated")
	err := fs.Parse(args)
	return c, err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
