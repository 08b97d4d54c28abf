package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/liveconsole/go/clients/console_api_client"
	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
	activityID string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("console failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "console",
		Short:         "Presenter console for live activity rounds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file, overrides environment")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load when present")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	flags.StringVar(&opts.activityID, "activity", "", "activity id, overrides the saved one")

	root.AddCommand(
		newRunCmd(opts),
		newRoundsCmd(opts),
		newDanmakuCmd(opts),
		newActivityCmd(opts),
	)
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the event server and drive rounds interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if headless {
				in = nil
			}
			return runConsole(cmd.Context(), cfg, opts.activityID, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "run without the command prompt until interrupted")
	return cmd
}

func newRoundsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rounds",
		Short: "List the activity's rounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := setupServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			act, err := svc.Resolver.Resolve(cmd.Context(), opts.activityID)
			if err != nil {
				return err
			}
			rounds, err := svc.API.ListRounds(cmd.Context(), act.ID.String())
			if err != nil {
				return fmt.Errorf("list rounds: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", act.Name, act.ID)
			for _, r := range rounds {
				fmt.Fprintf(out, "  %-6s %-24s %3ds  status=%d\n",
					r.ID, r.Name, int(r.DurationOr(models.DefaultRoundDuration).Seconds()), r.Status)
			}
			return nil
		},
	}
}

func newDanmakuCmd(opts *rootOptions) *cobra.Command {
	var query console_api_client.DanmakuQuery
	cmd := &cobra.Command{
		Use:   "danmaku",
		Short: "List audience comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := setupServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			act, err := svc.Resolver.Resolve(cmd.Context(), opts.activityID)
			if err != nil {
				return err
			}
			page, err := svc.API.ListDanmaku(cmd.Context(), act.ID.String(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d comments\n", page.Total)
			for _, d := range page.List {
				name := d.Nickname
				if name == "" {
					name = d.UserID.String()
				}
				fmt.Fprintf(out, "  %-16s %s\n", name, d.Content)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&query.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&query.PageSize, "size", 0, "comments per page")
	return cmd
}

func newActivityCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the saved activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := setupServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			id, savedAt, err := svc.Store.SavedActivity(cmd.Context())
			if err != nil {
				return err
			}
			if id == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved activity")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (saved %s)\n", id, savedAt.Local().Format(time.RFC3339))
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <activityId>",
			Short: "Verify an activity and save it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				svc, err := setupServices(cfg)
				if err != nil {
					return err
				}
				defer svc.Close()

				act, err := svc.Resolver.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", act.ID, act.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the saved activity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				svc, err := setupServices(cfg)
				if err != nil {
					return err
				}
				defer svc.Close()
				return svc.Store.ClearActivityID(cmd.Context())
			},
		},
	)
	return cmd
}
