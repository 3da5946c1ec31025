package main

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stravella/chatwidget/internal/identity"
	"github.com/stravella/chatwidget/internal/surface"
	"github.com/stravella/chatwidget/internal/widget"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		pagePath string
		open     bool
		full     bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Mount the widget and print its markup",
		Long: `render mounts the widget into an empty page, or into host markup given with
--page, and prints the result. Data attributes on the page's widget script
are read like a browser would, below --attr and the global config.
Thread ids are not persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc  *surface.Document
				page []widgetconfig.Overrides
			)
			if pagePath != "" {
				raw, err := os.ReadFile(pagePath)
				if err != nil {
					return errors.Wrap(err, "reading page")
				}
				if doc, err = surface.ParseDocument(bytes.NewReader(raw)); err != nil {
					return err
				}
				attrs, err := widgetconfig.ScriptAttributes(bytes.NewReader(raw))
				switch {
				case errors.Is(err, widgetconfig.ErrScriptNotFound):
				case err != nil:
					return err
				default:
					page = append(page, widgetconfig.FromDataAttributes(attrs))
				}
			}

			sources, err := a.sources()
			if err != nil {
				return err
			}
			// The script's own attributes rank below --attr.
			sources = append(page, sources...)

			w, err := widget.Mount(widget.MountOptions{
				Sources:       sources,
				ConfigOptions: a.configOptions(),
				Storage:       identity.UnavailableStorage{},
				Document:      doc,
				Client:        a.client(),
				Logger:        a.log,
			})
			if err != nil {
				return err
			}
			if open {
				w.Open()
			}

			if full {
				err = w.RenderPage(cmd.OutOrStdout())
			} else {
				err = w.Render(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte("\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&pagePath, "page", "", "host page to mount into")
	cmd.Flags().BoolVar(&open, "open", false, "open the panel before rendering")
	cmd.Flags().BoolVar(&full, "full", false, "print the whole page, not just the widget")
	return cmd
}
