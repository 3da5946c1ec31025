package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stravella/chatwidget/internal/console"
	"github.com/stravella/chatwidget/internal/widget"
)

// localScope keys thread ids for the terminal user, apart from preview visitors.
const localScope = "local"

func newChatCmd(a *app) *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat through the widget from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := a.sources()
			if err != nil {
				return err
			}

			db := a.openStore()
			if db != nil {
				defer db.Close()
			}

			w, err := widget.Mount(widget.MountOptions{
				Sources:       sources,
				ConfigOptions: a.configOptions(),
				Storage:       storageFor(db, localScope),
				Client:        a.client(),
				Logger:        a.log,
			})
			if err != nil {
				return err
			}
			if open {
				w.Open()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return console.New(w, os.Stdin, os.Stdout).Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&open, "open", true, "start with the panel open")
	return cmd
}
