package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/choicetrial/go/internal/dbconfig"
	"github.com/mcdev12/choicetrial/go/internal/results"
)

// Exports stored trial results as CSV.
//
//	go run ./go/internal/tools/export_results -experiment confidence -out results.csv
func main() {
	var (
		sessionFlag    = flag.String("session", "", "only export this session id")
		experimentFlag = flag.String("experiment", "", "only export this experiment")
		outFlag        = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	query, args, err := buildQuery(*sessionFlag, *experimentFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query results: %v\n", err)
		os.Exit(1)
	}
	var recs []results.Record
	for rows.Next() {
		rec, err := results.ScanRecord(rows.Scan)
		if err != nil {
			rows.Close()
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read results: %v\n", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if *outFlag != "" {
		f, err := os.Create(*outFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := results.WriteCSV(out, recs); err != nil {
		fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "exported %d trial results\n", len(recs))
}

// buildQuery returns the select statement and its arguments for the filters.
func buildQuery(session, experiment string) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	if session != "" {
		id, err := uuid.Parse(session)
		if err != nil {
			return "", nil, fmt.Errorf("invalid session id %q: %w", session, err)
		}
		args = append(args, id)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if experiment != "" {
		args = append(args, experiment)
		where = append(where, fmt.Sprintf("experiment = $%d", len(args)))
	}

	query := "SELECT " + results.SelectColumns + " FROM trial_results"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_id, trial_index"
	return query, args, nil
}
