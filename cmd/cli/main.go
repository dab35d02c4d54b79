package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"rumble-backup/internal/auth"
	"rumble-backup/internal/catalog"
	"rumble-backup/internal/config"
	"rumble-backup/internal/cookie"
	"rumble-backup/internal/export"
	"rumble-backup/internal/fetcher"
	"rumble-backup/internal/media"
	"rumble-backup/internal/reconciler"
	"rumble-backup/internal/state"
	"rumble-backup/internal/utils"
	"rumble-backup/pkg/models"
)

var (
	configDir string
	maxVideos int
	force     bool
	strategy  string

	exportFormat string
	exportOut    string
	exportRuns   bool
	exportLimit  int
)

var rootCmd = &cobra.Command{
	Use:   "rumble-backup",
	Short: "Incremental backup tool for Rumble channels",
	Long: `Rumble Backup mirrors the published videos of configured Rumble
channels to local disk. Runs are incremental: videos already recorded
and present on disk are skipped, deleted files are re-fetched, and
progress is flushed after every download so an interrupted run never
repeats completed work.`,
	Version: "1.0.0",
}

var backupCmd = &cobra.Command{
	Use:   "backup [channel...]",
	Short: "Run a backup for the given channels (all configured by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configDir)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		channels := args
		if len(channels) == 0 {
			channels = cfg.Channels
		}
		if len(channels) == 0 {
			fmt.Println("No channels configured. Add one with: rumble-backup channels add <channel>")
			return nil
		}

		catalogStore, err := catalog.NewStore(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("error opening catalog: %w", err)
		}
		defer catalogStore.Close()

		name := cfg.Fetcher.Strategy
		if strategy != "" {
			name = strategy
		}
		fetch, err := fetcher.NewRegistry().New(name, fetcher.FromConfig(cfg, cookie.NewManager()))
		if err != nil {
			return fmt.Errorf("error creating fetch strategy: %w", err)
		}

		rec := reconciler.New(fetch, state.NewStore(configManager.StatePath()), reconciler.Options{
			OutputDir: cfg.OutputDir,
			PauseMin:  configManager.PauseMin(),
			PauseMax:  configManager.PauseMax(),
			Catalog:   catalogStore,
		})

		opts := models.BackupOptions{
			MaxVideos:   cfg.Backup.MaxVideosPerChannel,
			ForceRescan: cfg.Backup.ForceRescan,
		}
		if cmd.Flags().Changed("max-videos") {
			opts.MaxVideos = maxVideos
		}
		if force {
			opts.ForceRescan = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Backing up %d channel(s) with the %s strategy\n", len(channels), fetch.Name())
		totals, err := rec.Run(ctx, channels, opts)
		if totals != nil {
			fmt.Printf("\nBackup summary: %d channel(s), %d found, %d downloaded, %d skipped, %d failed\n",
				totals.Channels, totals.VideosFound, totals.VideosDownloaded,
				totals.VideosSkipped, totals.VideosFailed)
		}
		return err
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage the configured channel list",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured channels and their recorded progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configDir)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		if len(cfg.Channels) == 0 {
			fmt.Println("No channels configured")
			return nil
		}

		backupState, err := state.NewStore(configManager.StatePath()).Load()
		if err != nil {
			return fmt.Errorf("error loading state: %w", err)
		}

		fmt.Printf("Configured channels (%d)\n", len(cfg.Channels))
		for i, channel := range cfg.Channels {
			fmt.Printf("\n%d. %s\n", i+1, channel)
			fmt.Printf("   URL: %s\n", models.ChannelURL(channel))
			if cs, ok := backupState.Channels[channel]; ok {
				fmt.Printf("   Recorded videos: %d\n", len(cs.DownloadedVideoIDs))
				if cs.LastBackup != nil {
					fmt.Printf("   Last backup: %s\n", cs.LastBackup.Format("2006-01-02 15:04:05"))
				}
			} else {
				fmt.Printf("   Never backed up\n")
			}
		}
		return nil
	},
}

var channelsAddCmd = &cobra.Command{
	Use:   "add [channel]",
	Short: "Add a channel to the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		if _, err := configManager.Load(configDir); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		if err := configManager.AddChannel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Added channel: %s\n", args[0])
		return nil
	},
}

var channelsRemoveCmd = &cobra.Command{
	Use:   "remove [channel]",
	Short: "Remove a channel from the configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		if _, err := configManager.Load(configDir); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		if err := configManager.RemoveChannel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed channel: %s\n", args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-channel progress and catalog totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configDir)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		backupState, err := state.NewStore(configManager.StatePath()).Load()
		if err != nil {
			return fmt.Errorf("error loading state: %w", err)
		}

		fmt.Printf("Channels (%d)\n", len(cfg.Channels))
		for _, channel := range cfg.Channels {
			channelDir := filepath.Join(cfg.OutputDir, models.SafeChannelName(channel))
			recorded := 0
			lastBackup := "never"
			if cs, ok := backupState.Channels[channel]; ok {
				recorded = len(cs.DownloadedVideoIDs)
				if cs.LastBackup != nil {
					lastBackup = cs.LastBackup.Format("2006-01-02 15:04")
				}
			}
			fmt.Printf("   %-30s %3d on disk  %3d recorded  %10s  last backup %s\n",
				channel, media.CountVideoDirs(channelDir), recorded,
				utils.FormatBytes(media.DirSize(channelDir)), lastBackup)
		}

		catalogStore, err := catalog.NewStore(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("error opening catalog: %w", err)
		}
		defer catalogStore.Close()

		stats, err := catalogStore.Stats()
		if err != nil {
			return fmt.Errorf("error reading catalog: %w", err)
		}

		fmt.Printf("\nCatalog\n")
		fmt.Printf("   Videos: %d\n", stats.TotalVideos)
		fmt.Printf("   Total size: %s\n", utils.FormatBytes(stats.TotalSize))
		fmt.Printf("   Runs recorded: %d\n", stats.TotalRuns)

		runs, err := catalogStore.RecentRuns(5)
		if err != nil {
			return fmt.Errorf("error reading run history: %w", err)
		}
		if len(runs) > 0 {
			fmt.Printf("\nRecent runs\n")
			for _, run := range runs {
				fmt.Printf("   %s  %s: %d found, %d downloaded, %d skipped, %d failed\n",
					run.CompletedAt.Format("2006-01-02 15:04"), run.Channel,
					run.VideosFound, run.VideosDownloaded, run.VideosSkipped, run.VideosFailed)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog to CSV, XLSX or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager := config.NewManager()
		cfg, err := configManager.Load(configDir)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		defer configManager.Close()

		catalogStore, err := catalog.NewStore(cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("error opening catalog: %w", err)
		}
		defer catalogStore.Close()

		exporter, err := export.NewExporter(export.ExportFormat(exportFormat), exportOut)
		if err != nil {
			return err
		}

		if exportRuns {
			runs, err := catalogStore.RecentRuns(exportLimit)
			if err != nil {
				return fmt.Errorf("error reading run history: %w", err)
			}
			if err := exporter.ExportRuns(runs); err != nil {
				return err
			}
			fmt.Printf("Exported %d run(s) to %s\n", len(runs), exportOut)
			return nil
		}

		videos, err := catalogStore.AllVideos()
		if err != nil {
			return fmt.Errorf("error reading catalog: %w", err)
		}
		if err := exporter.ExportVideos(videos); err != nil {
			return err
		}
		fmt.Printf("Exported %d video(s) to %s\n", len(videos), exportOut)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Hash a password for the auth.password_hash config entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "", "Configuration directory")

	backupCmd.Flags().IntVar(&maxVideos, "max-videos", 0, "Limit the number of videos per channel (0 means all)")
	backupCmd.Flags().BoolVar(&force, "force", false, "Re-download videos already recorded as backed up")
	backupCmd.Flags().StringVar(&strategy, "strategy", "", "Fetch strategy override (ytdlp, embed)")

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format (csv, xlsx, json)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Destination file")
	exportCmd.Flags().BoolVar(&exportRuns, "runs", false, "Export run history instead of videos")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Limit exported runs (0 means default window)")
	exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(hashPasswordCmd)

	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsAddCmd)
	channelsCmd.AddCommand(channelsRemoveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
