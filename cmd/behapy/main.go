package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/internal/medpc"
	"github.com/himanishpuri/behapy/internal/tdt"
	"github.com/himanishpuri/behapy/pkg/behapy"
	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/himanishpuri/behapy/pkg/utils"
)

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printBanner()
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	var err error
	switch command {
	case "preprocess":
		err = handlePreprocess(os.Args[2:])
	case "tdt2bids":
		err = handleTDT2BIDS(os.Args[2:])
	case "medpc2csv":
		err = handleMedPC2CSV(os.Args[2:])
	case "runs":
		err = handleRuns(os.Args[2:])
	case "help", "-h", "--help":
		printBanner()
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("\n❌ %s failed: %v\n", command, err)
		log.Errorf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _          _
| |__   ___| |__   __ _ _ __  _   _
| '_ \ / _ \ '_ \ / _' | '_ \| | | |
| |_) |  __/ | | | (_| | |_) | |_| |
|_.__/ \___|_| |_|\__,_| .__/ \__, |
                       |_|    |___/
       Fibre photometry tooling
`
	fmt.Println(banner)
}

// parseArgs parses cmd's flags and returns the positional arguments, which
// may come before or after the flags.
func parseArgs(cmd *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := cmd.Parse(args); err != nil {
		return nil, err
	}
	return append(positional, cmd.Args()...), nil
}

type ledgerFlags struct {
	db       *string
	noLedger *bool
}

func addLedgerFlags(fs *flag.FlagSet) ledgerFlags {
	return ledgerFlags{
		db:       fs.String("db", utils.GetEnvOrDefault("BEHAPY_DB_PATH", ""), "Path to the run ledger (default: <bidsroot>/derivatives/preprocess/behapy.sqlite3)"),
		noLedger: fs.Bool("no-ledger", false, "Do not record runs in the ledger"),
	}
}

func (l ledgerFlags) options() []behapy.Option {
	if *l.noLedger {
		return []behapy.Option{behapy.WithoutLedger()}
	}
	if *l.db != "" {
		return []behapy.Option{behapy.WithDBPath(*l.db)}
	}
	return nil
}

func handlePreprocess(args []string) error {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("preprocess", flag.ExitOnError)
	iso := cmd.String("iso", utils.GetEnvOrDefault("BEHAPY_ISO_CHANNEL", fp.DefaultIsoChannel), "Name of the isosbestic channel")
	cutoff := cmd.Float64("cutoff", fp.DefaultSmoothCutoff, "Low-pass cutoff in Hz for the normalising signal")
	ledger := addLedgerFlags(cmd)
	positional, err := parseArgs(cmd, args)
	if err != nil {
		return err
	}

	if len(positional) != 1 {
		fmt.Println("Usage: behapy preprocess <bidsroot> [--iso <name>] [--cutoff <hz>] [--db <path>] [--no-ledger]")
		os.Exit(1)
	}

	opts := append([]behapy.Option{
		behapy.WithRoot(positional[0]),
		behapy.WithIsoChannel(*iso),
		behapy.WithSmoothCutoff(*cutoff),
	}, ledger.options()...)

	svc, err := behapy.NewService(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🔧 Preprocessing %s\n", svc.Root())
	report, err := svc.Preprocess(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	log.Infof("Run %s complete", report.RunID)
	return nil
}

func printReport(report *models.Report) {
	rows := 0
	for _, o := range report.Outcomes {
		rows += o.Rows
	}
	fmt.Printf("\n📊 Run %s\n", report.RunID)
	fmt.Printf("   Written: %d (%s rows)\n", report.Written, humanize.Comma(int64(rows)))
	fmt.Printf("   Skipped: %d\n", report.Skipped)
	if report.Failed > 0 {
		fmt.Printf("   Failed:  %d\n", report.Failed)
	}
}

func handleTDT2BIDS(args []string) error {
	if len(args) != 3 {
		fmt.Println("Usage: behapy tdt2bids <session_csv> <experiment_json> <bidsroot>")
		os.Exit(1)
	}

	sessions, err := tdt.LoadSessionTankMap(args[0])
	if err != nil {
		return fmt.Errorf("loading session map: %w", err)
	}
	names, err := tdt.LoadEventNames(args[1])
	if err != nil {
		return fmt.Errorf("loading experiment description: %w", err)
	}

	fmt.Printf("📥 Converting %d block(s) into %s\n", len(sessions), args[2])
	if err := tdt.ConvertBlock(sessions, args[2], names); err != nil {
		return err
	}
	fmt.Println("✅ Conversion complete")
	return nil
}

func handleMedPC2CSV(args []string) error {
	if len(args) != 3 {
		fmt.Println("Usage: behapy medpc2csv <source_glob> <output_dir> <config_json>")
		os.Exit(1)
	}

	res, err := medpc.Convert(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Printf("✅ Wrote %s sessions to %s\n", humanize.Comma(int64(res.Sessions)), res.InfoPath)
	fmt.Printf("✅ Wrote %s events to %s\n", humanize.Comma(int64(res.Events)), res.EventsPath)
	return nil
}

func handleRuns(args []string) error {
	cmd := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := cmd.Int("limit", 20, "Number of runs to show (0 for all)")
	show := cmd.String("outcomes", "", "Show the per-recording outcomes of a run")
	del := cmd.String("delete", "", "Delete a run from the ledger")
	db := cmd.String("db", utils.GetEnvOrDefault("BEHAPY_DB_PATH", ""), "Path to the run ledger")
	positional, err := parseArgs(cmd, args)
	if err != nil {
		return err
	}

	if len(positional) != 1 {
		fmt.Println("Usage: behapy runs <bidsroot> [--limit <n>] [--outcomes <run_id>] [--delete <run_id>] [--db <path>]")
		os.Exit(1)
	}

	opts := []behapy.Option{behapy.WithRoot(positional[0])}
	if *db != "" {
		opts = append(opts, behapy.WithDBPath(*db))
	}
	svc, err := behapy.NewService(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch {
	case *del != "":
		if err := svc.DeleteRun(*del); err != nil {
			return err
		}
		fmt.Printf("✅ Deleted run %s\n", *del)
		return nil
	case *show != "":
		outcomes, err := svc.RunOutcomes(*show)
		if err != nil {
			return err
		}
		printOutcomes(outcomes)
		return nil
	}

	runs, err := svc.ListRuns(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("\n📭 No runs recorded")
		return nil
	}
	fmt.Printf("\n📚 %d run(s):\n\n", len(runs))
	for _, r := range runs {
		state := "running"
		if r.FinishedAt != nil {
			state = "finished " + humanize.Time(*r.FinishedAt)
		}
		fmt.Printf("%s  started %s, %s\n", r.ID, humanize.Time(r.StartedAt), state)
		fmt.Printf("   written %d, skipped %d, failed %d\n", r.Written, r.Skipped, r.Failed)
		if r.Error != "" {
			fmt.Printf("   error: %s\n", r.Error)
		}
	}
	return nil
}

func printOutcomes(outcomes []models.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("%-8s %s", o.Status, o.Key.Stem())
		if o.Status == models.StatusWritten {
			line += " (" + strconv.Itoa(o.Rows) + " rows)"
		}
		if o.Detail != "" {
			line += ": " + o.Detail
		}
		fmt.Println(line)
	}
}

func printUsage() {
	fmt.Println("behapy - fibre photometry preprocessing and conversion")
	fmt.Println("\nUsage:")
	fmt.Println("  behapy preprocess <bidsroot> [--iso <name>] [--cutoff <hz>] [--db <path>] [--no-ledger]")
	fmt.Println("  behapy tdt2bids <session_csv> <experiment_json> <bidsroot>")
	fmt.Println("  behapy medpc2csv <source_glob> <output_dir> <config_json>")
	fmt.Println("  behapy runs <bidsroot> [--limit <n>] [--outcomes <run_id>] [--delete <run_id>]")
	fmt.Println("\nEnvironment:")
	fmt.Println("  BEHAPY_DB_PATH      Run ledger location")
	fmt.Println("  BEHAPY_ISO_CHANNEL  Isosbestic channel name (default: iso)")
	fmt.Println("  LOG_LEVEL           DEBUG, INFO, WARN or ERROR")
	fmt.Println("\nExamples:")
	fmt.Println("  behapy preprocess ./bids")
	fmt.Println("  behapy medpc2csv 'raw/*.txt' out medpc.json")
}
