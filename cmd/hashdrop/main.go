package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/hashdrop/cmd/hashdrop/modules"
	"github.com/memohai/hashdrop/internal/config"
	"github.com/memohai/hashdrop/internal/media"
	"github.com/memohai/hashdrop/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Telegram bot that stores uploads by content hash and serves them over HTTP",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCommand(), newHashCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the download server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := newApp()
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newApp(extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		modules.InfraModule,
		modules.MediaModule,
		modules.HandlersModule,
		modules.ServerModule,
		modules.TelegramModule,
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	}
	return fx.New(append(opts, extra...)...)
}

func newHashCommand() *cobra.Command {
	var ext string
	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the content hash and storage key a file would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ext == "" {
				cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				ext = cfg.Storage.Extension
			}
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			sum, err := media.HashReader(f)
			if err != nil {
				return fmt.Errorf("hash %s: %w", args[0], err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, media.StorageKey(sum, ext))
			return err
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "", "storage extension (defaults to the configured one)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Banner())
		},
	}
}
