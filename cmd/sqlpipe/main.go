// Package main provides sqlpipe, a command line host that runs one SQL command and streams the result to stdout.
//
// Usage:
//
//	sqlpipe [-config file] [-param name:type=value]... 'SELECT ... WHERE id = :id'
//	sqlpipe [-config file] -table books -limit 10
//	sqlpipe [-config file] -exec -param year:int32=1970 'DELETE FROM books WHERE published < :year'
//
// Flags must precede the sql text.
//
// Configuration comes from SQLPIPE_* environment variables and an optional config file,
// e.g. SQLPIPE_DSN, SQLPIPE_ADAPTER=sqlx, SQLPIPE_SERIALIZER=raw, SQLPIPE_TIMEOUT=5s.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe/sqlengine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("sqlpipe", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var params paramFlags
	configPath := flags.String("config", "", "path to a config file (yaml, json or toml)")
	table := flags.String("table", "", "stream all rows of this table instead of running sql text")
	limit := flags.Uint("limit", 0, "row limit for -table")
	execMode := flags.Bool("exec", false, "execute a non-query command and print the number of affected rows")
	errorDoc := flags.Bool("error-doc", false, "write failures as a JSON error document to stdout instead of failing")
	flags.Var(&params, "param", "named parameter as name:type=value, may be repeated")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmd, err := buildCommand(strings.Join(flags.Args(), " "), *table, *limit, params, cfg.Timeout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var options []sqlengine.Option
	if *errorDoc {
		options = append(options, sqlengine.WithErrorHandlerBuilder(sqlpipe.NewErrorHandlerChain(
			sqlpipe.NewLoggingErrorHandlerBuilder(logger),
			sqlpipe.NewWriterErrorHandlerBuilder(stdout),
		)))
	}

	pipeline, release, err := openPipeline(ctx, cfg, logger, options...)
	if err != nil {
		logger.Error("opening database failed", "error", err)
		return 1
	}
	defer release()

	if err := execute(ctx, pipeline, cmd, *execMode, cfg.DefaultOutput, stdout); err != nil {
		logger.Error("sqlpipe failed", "error", err)
		return 1
	}

	return 0
}

// execute streams the command's rows to stdout, or reports the affected rows in exec mode.
func execute(
	ctx context.Context,
	pipeline *sqlengine.Pipeline,
	cmd *sqlpipe.Command,
	execMode bool,
	defaultOutput string,
	stdout io.Writer,
) error {
	if execMode {
		rowsAffected, err := pipeline.Exec(ctx, cmd)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(stdout, "%d\n", rowsAffected)

		return err
	}

	return pipeline.StreamText(ctx, cmd, stdout, defaultOutput)
}
