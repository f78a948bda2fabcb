package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"swap-sentry/internal/config"
	"swap-sentry/internal/database"
	"swap-sentry/internal/exitcodes"
)

func main() {
	// Parse command-line flags
	dbPath := flag.String("db", config.DefaultDatabasePath, "Path to teardown history database")
	recent := flag.Int("recent", 0, "Show N most recent actions")
	runs := flag.Int("runs", 0, "Show N most recent runs")
	runID := flag.String("run", "", "Show one run and its actions")
	stats := flag.Bool("stats", false, "Show teardown statistics")
	action := flag.String("action", "", "Filter by action (SWAPOFF, REMOVE_ENCRYPTION, DESTROY_MIRROR)")
	target := flag.String("target", "", "Filter by target pattern (SQL LIKE syntax)")
	days := flag.Int("days", 30, "Number of days for statistics (default: 30)")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	// Open database
	db, err := database.NewHistoryDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	switch {
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *runID != "":
		showRun(db, *runID, *jsonOutput)
	case *runs > 0:
		showRuns(db, *runs, *jsonOutput)
	case *recent > 0:
		records, err := db.GetRecentActions(*recent)
		if err != nil {
			log.Fatalf("ERROR: Failed to get recent actions: %v", err)
		}
		output(records, *jsonOutput, "")
	case *action != "":
		records, err := db.GetActionsByAction(strings.ToUpper(*action))
		if err != nil {
			log.Fatalf("ERROR: Failed to query by action: %v", err)
		}
		output(records, *jsonOutput, fmt.Sprintf("Records with action: %s\n", strings.ToUpper(*action)))
	case *target != "":
		records, err := db.GetActionsByTarget(*target)
		if err != nil {
			log.Fatalf("ERROR: Failed to query by target: %v", err)
		}
		output(records, *jsonOutput, fmt.Sprintf("Actions matching target pattern: %s\n", *target))
	default:
		flag.Usage()
		printExamples(os.Stdout)
		os.Exit(exitcodes.UsageError)
	}
}

const examples = `
Examples:
  swap-sentry-query --runs 5               # Show 5 most recent runs
  swap-sentry-query --run <id>             # Show one run and its actions
  swap-sentry-query --recent 10            # Show 10 most recent actions
  swap-sentry-query --stats                # Show teardown statistics
  swap-sentry-query --action DESTROY_MIRROR
  swap-sentry-query --target '%.eli'       # Show actions on geli providers
`

func printExamples(w io.Writer) {
	_, _ = io.WriteString(w, examples)
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func output(records []database.ActionRecord, jsonOutput bool, header string) {
	if jsonOutput {
		printJSON(records)
		return
	}
	if header != "" {
		fmt.Println(header)
	}
	printActions(records)
}

func showStats(db *database.HistoryDB, days int, jsonOutput bool) {
	stats, err := db.GetActionStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}

	if jsonOutput {
		printJSON(stats)
		return
	}

	fmt.Printf("Teardown Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Total Runs:     %d\n", stats.TotalRuns)
	fmt.Printf("Failed Runs:    %d\n", stats.FailedRuns)
	fmt.Printf("Total Actions:  %d\n\n", stats.TotalActions)

	printCounts("By Action:", stats.ByAction)
	printCounts("By Status:", stats.ByStatus)
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(title)
	for _, k := range keys {
		fmt.Printf("  %-18s %d\n", k, counts[k])
	}
	fmt.Println()
}

func showRuns(db *database.HistoryDB, limit int, jsonOutput bool) {
	runs, err := db.GetRecentRuns(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get recent runs: %v", err)
	}

	if jsonOutput {
		printJSON(runs)
		return
	}

	printRuns(runs)
}

func showRun(db *database.HistoryDB, id string, jsonOutput bool) {
	run, err := db.GetRun(id)
	if err != nil {
		log.Fatalf("ERROR: Failed to get run %s: %v", id, err)
	}
	actions, err := db.GetActionsByRun(id)
	if err != nil {
		log.Fatalf("ERROR: Failed to get actions of run %s: %v", id, err)
	}

	if jsonOutput {
		printJSON(struct {
			Run     database.Run            `json:"run"`
			Actions []database.ActionRecord `json:"actions"`
		}{run, actions})
		return
	}

	printRuns([]database.Run{run})
	if run.ErrorMessage != "" {
		fmt.Printf("\nError: %s\n", run.ErrorMessage)
	}
	fmt.Println()
	printActions(actions)
}

func printRuns(runs []database.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tStarted\tPlatform\tDry Run\tStatus\tDisks")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t-------\t------\t-----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Platform, r.DryRun, r.Status, strings.Join(r.Disks, ","))
	}
	_ = w.Flush()
}

func printActions(records []database.ActionRecord) {
	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tStatus\tDuration\tTarget\tError")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t------\t--------\t------\t-----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dms\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.Status, r.DurationMs, r.Target, r.ErrorMessage)
	}
	_ = w.Flush()
}
