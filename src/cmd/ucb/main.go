// Package main provides the ucb CLI: the GitHub Action entrypoint plus local
// helper commands for listing projects and build history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ucb-agent/src/config"
	"ucb-agent/src/events"
	"ucb-agent/src/logger"
	"ucb-agent/src/mcp"
	"ucb-agent/src/orchestrator"
	"ucb-agent/src/pipeline"
	"ucb-agent/src/store"
	"ucb-agent/src/tui"
	"ucb-agent/src/unitycloud"
)

var appConfig *config.Config

// Flag targets. Values are merged into appConfig only when the flag was
// actually set, so UCB_* environment values keep working as defaults.
var (
	flagAPIKey          string
	flagOrgID           string
	flagProjectID       string
	flagPrimaryTarget   string
	flagTargetPlatform  string
	flagBranchRef       string
	flagHeadRef         string
	flagCommitSHA       string
	flagPollingSeconds  float64
	flagDownloadBinary  bool
	flagCreateShareURL  bool
	flagExistingBuild   int
	flagAllowNewTarget  bool
	flagWatch           bool
	flagHistoryTargetID string
	flagHistoryLimit    int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ucb",
	Short: "ucb - Unity Cloud Build orchestrator for GitHub Actions",
	Long: `ucb triggers Unity Cloud Build jobs, polls them to completion, and
publishes artifact and share-link outputs for downstream workflow steps.

Pull request builds get their own build target, cloned from the primary
target and pointed at the PR branch. Targets are reused across runs.

Configuration comes from UCB_* environment variables, overridden by flags.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		appConfig = config.LoadFromEnv()
		mergeFlags(cmd)
		appConfig.Sanitize()
	},
}

// runCmd executes the full orchestration: trigger/reuse, poll, post-steps.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a build and poll it to completion",
	Long: `Run the full orchestration: resolve the build target for the current
git ref (creating a PR target when needed), trigger a build or attach to an
existing one, poll until a terminal status, then optionally download the
artifact and create a share link.

The command exits 0 only when the build succeeds and all requested
post-steps complete.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := appConfig.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runPipeline(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
			os.Exit(1)
		}
	},
}

// listCmd prints the projects and build targets the credentials can see.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible projects and build targets",
	Run: func(cmd *cobra.Command, args []string) {
		if err := appConfig.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		client := unitycloud.NewClient(appConfig.APIKey, appConfig.OrgID)

		projects, err := client.ListProjects(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list projects: %v\n", unitycloud.WrapError(err))
			os.Exit(1)
		}

		for _, project := range projects {
			fmt.Printf("%s\n", project.ProjectID)
			if appConfig.ProjectID != "" && project.ProjectID != appConfig.ProjectID {
				continue
			}
			targets, err := client.ListBuildTargets(ctx, project.ProjectID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list build targets for %s: %v\n", project.ProjectID, err)
				os.Exit(1)
			}
			for _, t := range targets {
				fmt.Printf("  %s (%s, enabled=%v)\n", t.ID, t.Platform, t.Enabled)
			}
		}
	},
}

// historyCmd shows recorded build outcomes from Postgres.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded build history for a target",
	Long:  `Query Postgres for past build outcomes recorded by previous runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		if appConfig.PostgresDSN == "" {
			fmt.Fprintln(os.Stderr, "ERROR: POSTGRES_DSN environment variable is required for history")
			os.Exit(1)
		}
		if appConfig.ProjectID == "" || flagHistoryTargetID == "" {
			fmt.Fprintln(os.Stderr, "ERROR: --project_id and --target_id are required for history")
			os.Exit(1)
		}

		st, err := store.NewPostgresStore(appConfig.PostgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Postgres: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		records, err := st.History(context.Background(), appConfig.ProjectID, flagHistoryTargetID, flagHistoryLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch history: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Printf("No recorded builds for %s/%s\n", appConfig.ProjectID, flagHistoryTargetID)
			return
		}

		for _, r := range records {
			line := fmt.Sprintf("#%d %s %s %.0fs", r.BuildNumber, r.Status, r.Branch, r.DurationSeconds)
			if r.Commit != "" {
				line += " " + r.Commit
			}
			if r.ShareURL != "" {
				line += " " + r.ShareURL
			}
			fmt.Println(line)
		}
	},
}

// mcpServerCmd serves build tools over MCP stdio.
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve Unity Cloud Build tools over MCP stdio",
	Run: func(cmd *cobra.Command, args []string) {
		if err := appConfig.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}

		client := unitycloud.NewClient(appConfig.APIKey, appConfig.OrgID)
		if err := mcp.NewServer(client).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

// runPipeline wires the optional publisher/store and runs the pipeline,
// either with console logs or under the watch TUI.
func runPipeline(ctx context.Context) error {
	cfg := appConfig

	publisher := events.Publisher(events.NewNullPublisher())
	if cfg.RedpandaBrokers != "" {
		p, err := events.NewRedpandaPublisher(strings.Split(cfg.RedpandaBrokers, ","))
		if err != nil {
			return fmt.Errorf("connecting to redpanda: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	var st store.Store
	if cfg.PostgresDSN != "" {
		s, err := store.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer s.Close()
		st = s
	}

	if !cfg.Watch {
		p, err := pipeline.New(pipeline.Options{
			Config:    cfg,
			Logger:    logger.NewConsoleLogger(),
			Publisher: publisher,
			Store:     st,
		})
		if err != nil {
			return err
		}
		return unitycloud.WrapError(p.Run(ctx))
	}

	return runWatch(ctx, publisher, st)
}

// runWatch runs the pipeline in a goroutine and renders progress in the TUI.
func runWatch(ctx context.Context, publisher events.Publisher, st store.Store) error {
	cfg := appConfig

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.NewWatchModel(cfg.ProjectID, cfg.PrimaryBuildTarget))

	p, err := pipeline.New(pipeline.Options{
		Config:    cfg,
		Logger:    logger.NewSilentLogger(),
		Publisher: publisher,
		Store:     st,
		OnProgress: func(progress orchestrator.Progress) {
			program.Send(tui.ProgressMsg(progress))
		},
	})
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		done <- err
		program.Send(tui.DoneMsg{Err: err})
	}()

	_, uiErr := program.Run()
	// Quitting the TUI early cancels the pipeline; otherwise the run already
	// finished and done holds its result.
	cancel()
	runErr := <-done

	if uiErr != nil {
		return uiErr
	}
	return unitycloud.WrapError(runErr)
}

// mergeFlags overrides env-derived config with explicitly set flags.
func mergeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("api_key") {
		appConfig.APIKey = flagAPIKey
	}
	if flags.Changed("org_id") {
		appConfig.OrgID = flagOrgID
	}
	if flags.Changed("project_id") {
		appConfig.ProjectID = flagProjectID
	}
	if flags.Changed("primary_build_target") {
		appConfig.PrimaryBuildTarget = flagPrimaryTarget
	}
	if flags.Changed("target_platform") {
		appConfig.TargetPlatform = flagTargetPlatform
	}
	if flags.Changed("github_branch_ref") {
		appConfig.BranchRef = flagBranchRef
	}
	if flags.Changed("github_head_ref") {
		appConfig.HeadRef = flagHeadRef
	}
	if flags.Changed("github_commit_sha") {
		appConfig.CommitSHA = flagCommitSHA
	}
	if flags.Changed("polling_interval") {
		appConfig.PollingInterval = time.Duration(flagPollingSeconds * float64(time.Second))
	}
	if flags.Changed("download_binary") {
		appConfig.DownloadBinary = flagDownloadBinary
	}
	if flags.Changed("create_share_url") {
		appConfig.CreateShareURL = flagCreateShareURL
	}
	if flags.Changed("use_existing_build_number") {
		appConfig.UseExistingBuildNumber = flagExistingBuild
	}
	if flags.Changed("allow_new_target") {
		appConfig.AllowNewTarget = flagAllowNewTarget
	}
	if flags.Changed("watch") {
		appConfig.Watch = flagWatch
	}
}

func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&flagAPIKey, "api_key", "", "Unity Cloud Build API key")
	persistent.StringVar(&flagOrgID, "org_id", "", "Unity organization id")
	persistent.StringVar(&flagProjectID, "project_id", "", "Unity Cloud Build project id")

	runFlags := runCmd.Flags()
	runFlags.StringVar(&flagPrimaryTarget, "primary_build_target", "", "Build target PR targets are cloned from")
	runFlags.StringVar(&flagTargetPlatform, "target_platform", "", "Target platform: ios, android, or webgl")
	runFlags.StringVar(&flagBranchRef, "github_branch_ref", "", "GitHub ref that triggered the workflow")
	runFlags.StringVar(&flagHeadRef, "github_head_ref", "", "PR head ref (pull_request events only)")
	runFlags.StringVar(&flagCommitSHA, "github_commit_sha", "", "Commit SHA to build")
	runFlags.Float64Var(&flagPollingSeconds, "polling_interval", 60, "Seconds between build status checks")
	runFlags.BoolVar(&flagDownloadBinary, "download_binary", false, "Download the build artifact into the workspace")
	runFlags.BoolVar(&flagCreateShareURL, "create_share_url", false, "Create a public share link for the artifact")
	runFlags.IntVar(&flagExistingBuild, "use_existing_build_number", -1, "Poll this build instead of triggering a new one")
	runFlags.BoolVar(&flagAllowNewTarget, "allow_new_target", true, "Allow creating a new build target for PR branches")
	runFlags.BoolVar(&flagWatch, "watch", false, "Show a live TUI instead of log output")

	historyCmd.Flags().StringVar(&flagHistoryTargetID, "target_id", "", "Build target id")
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Max records to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
