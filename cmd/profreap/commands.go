package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/inventory"
	"github.com/adm-tools/profreap/internal/probe"
	"github.com/adm-tools/profreap/internal/profile"
	"github.com/adm-tools/profreap/internal/reap"
	"github.com/adm-tools/profreap/internal/report"
)

// --- reap ---

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete profiles not used for more than the given number of days",
	Long: `Delete profiles not used for more than the given number of days.

Examples:
  profreap reap --age 90
  profreap reap --age 90 --dry-run
  profreap reap --age 30 --force --safe-list /etc/profreap/safe.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, _ := cmd.Flags().GetInt("age")
		debug, _ := cmd.Flags().GetBool("debug")
		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		safeListPath, _ := cmd.Flags().GetString("safe-list")
		fallbackFlag, _ := cmd.Flags().GetString("fallback")

		// Dry-run is only useful with the decision records visible.
		if dryRun {
			debug = true
		}
		initLogging(debug)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fallback := config.FallbackPolicy(cfg.Reap.Fallback)
		if fallbackFlag != "" {
			if fallback, err = config.ParseFallback(fallbackFlag); err != nil {
				return err
			}
		}

		var safeList []string
		if safeListPath != "" {
			if safeList, err = config.LoadSafeList(safeListPath); err != nil {
				return err
			}
		}

		pol, err := config.NewPolicy(config.PolicySpec{
			MinAgeDays: age,
			Force:      force,
			DryRun:     dryRun,
			Fallback:   fallback,
			SafeList:   safeList,
		})
		if err != nil {
			return err
		}

		store, err := inventory.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening inventory: %w", err)
		}
		defer store.Close()
		source := inventory.NewSource(store)

		before, err := source.Count()
		if err != nil {
			return fmt.Errorf("counting profiles: %w", err)
		}
		profiles, err := source.List()
		if err != nil {
			return fmt.Errorf("listing profiles: %w", err)
		}

		deps := reap.Deps{
			Session: probe.NewExecSessionProbe(cfg.Probes.SessionCommand),
			Domain:  probe.NewExecDomainProbe(cfg.Probes.DomainCommand),
			Logger:  slog.Default(),
		}

		reporter := report.New(slog.Default())
		decisions := reap.Plan(cmd.Context(), profiles, pol, time.Now().UTC(), deps)
		for _, d := range decisions {
			reporter.Decision(d)
		}

		result := reap.Execute(cmd.Context(), decisions, source, pol, slog.Default())

		after, err := source.Count()
		if err != nil {
			return fmt.Errorf("counting profiles: %w", err)
		}
		reporter.Summary(before, after, result)

		switch {
		case dryRun:
			printWarning("Dry run: %d of %d profiles would be deleted", result.Eligible, before)
		case result.Failed > 0:
			printWarning("Deleted %d profiles, %d failed (%d -> %d)", result.Deleted, result.Failed, before, after)
		default:
			printSuccess("Deleted %d of %d profiles (%d remain)", result.Deleted, before, after)
		}
		return nil
	},
}

func init() {
	reapCmd.Flags().IntP("age", "a", 0, "minimum age in days before a profile is stale (required)")
	reapCmd.Flags().BoolP("debug", "d", false, "log the decision for every profile")
	reapCmd.Flags().BoolP("force", "f", false, "also admit non-roaming profiles whose account no longer resolves")
	reapCmd.Flags().Bool("dry-run", false, "report verdicts without deleting anything (implies --debug)")
	reapCmd.Flags().String("safe-list", "", "YAML file of account IDs that are never deleted")
	reapCmd.Flags().String("fallback", "", "policy when no last-use timestamp resolves: skip or epoch")
	reapCmd.MarkFlagRequired("age")
}

// --- scan ---

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register profile directories under a root into the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		initLogging(false)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := inventory.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening inventory: %w", err)
		}
		defer store.Close()

		n, err := inventory.Scan(cmd.Context(), store, root)
		if err != nil {
			return err
		}
		printSuccess("Registered %d profile directories under %s", n, root)
		return nil
	},
}

func init() {
	scanCmd.Flags().String("root", "", "directory containing profile directories")
	scanCmd.MarkFlagRequired("root")
}

// --- mark ---

var markCmd = &cobra.Command{
	Use:   "mark <account>",
	Short: "Set the roaming/special flags on an inventory entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account := strings.ToLower(args[0])
		initLogging(false)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := inventory.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening inventory: %w", err)
		}
		defer store.Close()

		current, err := store.Get(account)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", account, err)
		}

		roaming := current.Roaming
		special := current.Special
		if cmd.Flags().Changed("roaming") {
			roaming, _ = cmd.Flags().GetBool("roaming")
		}
		if cmd.Flags().Changed("special") {
			special, _ = cmd.Flags().GetBool("special")
		}

		if err := store.SetFlags(account, roaming, special); err != nil {
			return err
		}
		printSuccess("Marked %s roaming=%v special=%v", account, roaming, special)
		return nil
	},
}

func init() {
	markCmd.Flags().Bool("roaming", false, "profile is configured as roaming")
	markCmd.Flags().Bool("special", false, "profile belongs to a built-in/system account")
}

// --- import ---

type importRecord struct {
	Account      string `yaml:"account"`
	Path         string `yaml:"path"`
	Roaming      bool   `yaml:"roaming"`
	Special      bool   `yaml:"special"`
	LastUse      string `yaml:"last_use"`
	LastDownload string `yaml:"last_download"`
	LastUpload   string `yaml:"last_upload"`
}

// loadImportFile parses a YAML list of inventory records into
// profiles. Account IDs default to the path-derived form when omitted.
func loadImportFile(path string) ([]profile.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import file: %w", err)
	}
	var records []importRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing import file %s: %w", path, err)
	}

	profiles := make([]profile.Profile, 0, len(records))
	for i, rec := range records {
		if rec.Path == "" {
			return nil, fmt.Errorf("record %d: path is required", i)
		}
		account := strings.ToLower(rec.Account)
		if account == "" {
			account = profile.AccountIDFromPath(rec.Path)
		}
		p := profile.Profile{
			AccountID: account,
			LocalPath: rec.Path,
			Roaming:   rec.Roaming,
			Special:   rec.Special,
		}
		if p.LastUse, err = profile.ParseDirectoryTime(rec.LastUse); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if p.LastDownload, err = profile.ParseDirectoryTime(rec.LastDownload); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if p.LastUpload, err = profile.ParseDirectoryTime(rec.LastUpload); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load inventory records from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		initLogging(false)

		profiles, err := loadImportFile(file)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := inventory.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening inventory: %w", err)
		}
		defer store.Close()

		for _, p := range profiles {
			if err := store.UpsertRecord(p); err != nil {
				return fmt.Errorf("importing %s: %w", p.AccountID, err)
			}
		}
		printSuccess("Imported %d profiles", len(profiles))
		return nil
	},
}

func init() {
	importCmd.Flags().String("file", "", "YAML file of inventory records")
	importCmd.MarkFlagRequired("file")
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the profile inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(false)

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := inventory.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening inventory: %w", err)
		}
		defer store.Close()

		profiles, err := store.List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles in inventory. Run 'profreap scan' or 'profreap import' first.")
			return nil
		}

		for _, p := range profiles {
			fmt.Printf("%s  %s  %s  last-use=%s\n",
				colorize(colorBold, fmt.Sprintf("%-16s", p.AccountID)),
				flagLabel(p),
				p.LocalPath,
				lastUseLabel(p),
			)
		}
		return nil
	},
}

func flagLabel(p profile.Profile) string {
	switch {
	case p.Special:
		return colorize(colorYellow, "special")
	case p.Roaming:
		return colorize(colorCyan, "roaming")
	default:
		return "local  "
	}
}

func lastUseLabel(p profile.Profile) string {
	for _, t := range []time.Time{p.LastUse, p.LastDownload, p.LastUpload} {
		if !t.IsZero() {
			return t.Format("2006-01-02")
		}
	}
	return "unknown"
}
