package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/internal/config"
	"github.com/trickstertwo/xchat/sink/printer"
	"github.com/trickstertwo/xchat/sink/store"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "xchat",
		Short:         "Aggregate live chat from dgg, kick and youtube",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a TOML config file (default "+config.DefaultPath+" if present)")

	load := func() (config.Config, error) { return config.Load(cfgPath) }

	single := func(use, short string, pick func(config.Config) xchat.Adapter) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				a, err := newApp(cfg, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return a.run(cmd.Context(), runOptions{adapters: []xchat.Adapter{pick(cfg)}, print: true})
			},
		}
	}

	root.AddCommand(
		single("dgg", "Print the community chat", dggAdapter),
		single("kick", "Print the kick chatroom", kickAdapter),
		single("youtube", "Print the youtube live chat", youtubeAdapter),
		newAllCmd(load),
		newRelayCmd(load),
		newRecentCmd(load),
	)
	return root
}

func newAllCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every enabled source with the printer, relay, store and redis forwarder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			adapters := enabledAdapters(cfg)
			if len(adapters) == 0 {
				return fmt.Errorf("no sources enabled")
			}
			return a.run(cmd.Context(), runOptions{
				adapters: adapters,
				print:    true,
				relay:    cfg.Relay.Enabled,
				store:    cfg.Store.Enabled,
				forward:  cfg.Redis.Enabled,
			})
		},
	}
}

func newRelayCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Serve WebSocket clients from the redis stream written by `xchat all`",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				return fmt.Errorf("relay needs redis.enabled = true")
			}
			a, err := newApp(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), runOptions{relay: true, mirror: true})
		},
	}
}

func newRecentCmd(load func() (config.Config, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recently stored messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			p := printer.New(cmd.OutOrStdout(), plainIfNotTTY(cmd.OutOrStdout())...)
			for i := len(recs) - 1; i >= 0; i-- {
				if err := p.Handle(cmd.Context(), recs[i].Message); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages to show")
	return cmd
}

// plainIfNotTTY disables styling when output is redirected to a file.
func plainIfNotTTY(w any) []printer.Option {
	f, ok := w.(*os.File)
	if !ok {
		return []printer.Option{printer.WithPlain()}
	}
	fi, err := f.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return []printer.Option{printer.WithPlain()}
	}
	return nil
}

const shutdownTimeout = 5 * time.Second
