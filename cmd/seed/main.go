package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	csvPath     = flag.String("csv", "", "Path to the source CSV (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to write to the database")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key. 0 = disabled")
)

// CSV contract
// username,category,trust_score
// category is one of ANONYMOUS, VERIFIED, EXPERT, PHD, ORGANIZATION

var validCategories = map[string]bool{
	"ANONYMOUS":    true,
	"VERIFIED":     true,
	"EXPERT":       true,
	"PHD":          true,
	"ORGANIZATION": true,
}

type UserCSV struct {
	Username   string
	Category   string
	TrustScore int
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *csvPath == "" {
		fatalf("--csv is required")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	rows, err := loadCSV(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}
	if err := validateRows(rows); err != nil {
		fatalf("CSV validation failed: %v", err)
	}

	fmt.Printf("Loaded %d users from %s\n", len(rows), *csvPath)

	if *dryRun {
		for _, r := range rows {
			fmt.Printf("  %-24s %-12s score=%d\n", r.Username, r.Category, r.TrustScore)
		}
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	// Optional advisory lock to avoid concurrent runs
	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	inserted, skipped := 0, 0
	for _, r := range rows {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, category, trust_score, ban_level, last_active_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, NOW(), NOW(), NOW())
			ON CONFLICT (username) DO NOTHING`,
			uuid.NewString(), r.Username, r.Category, r.TrustScore)
		if err != nil {
			fatalf("insert %s: %v", r.Username, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Printf("Done: inserted=%d skipped=%d (existing usernames untouched)\n", inserted, skipped)
}

func loadCSV(path string) ([]UserCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	var out []UserCSV
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// Skip a header row if present
		if first {
			first = false
			if strings.EqualFold(record[0], "username") {
				continue
			}
		}
		score, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("row %q: bad trust_score: %w", record[0], err)
		}
		out = append(out, UserCSV{
			Username:   strings.TrimSpace(record[0]),
			Category:   strings.ToUpper(strings.TrimSpace(record[1])),
			TrustScore: score,
		})
	}
	return out, nil
}

func validateRows(rows []UserCSV) error {
	seen := make(map[string]bool, len(rows))
	for i, r := range rows {
		if r.Username == "" {
			return fmt.Errorf("row %d: empty username", i+1)
		}
		if seen[r.Username] {
			return fmt.Errorf("row %d: duplicate username %q", i+1, r.Username)
		}
		seen[r.Username] = true
		if !validCategories[r.Category] {
			return fmt.Errorf("row %d: unknown category %q", i+1, r.Category)
		}
		if r.TrustScore < -50 || r.TrustScore > 500 {
			return fmt.Errorf("row %d: trust_score %d out of range", i+1, r.TrustScore)
		}
	}
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
