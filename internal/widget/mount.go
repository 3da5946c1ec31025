package widget

import (
	"github.com/rs/zerolog"

	"github.com/stravella/chatwidget/internal/chatapi"
	"github.com/stravella/chatwidget/internal/identity"
	"github.com/stravella/chatwidget/internal/surface"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

type MountOptions struct {
	// Sources in increasing precedence: data attributes, then global object.
	Sources       []widgetconfig.Overrides
	ConfigOptions widgetconfig.Options

	Storage  identity.Storage
	Document *surface.Document
	Client   chatapi.Sender
	Logger   zerolog.Logger

	ExchangeObserver Observer
	IdentityObserver identity.Observer
}

// Mount runs the page-load sequence: resolve the config, load or create the
// thread id, ensure the surface and bind the controller.
func Mount(o MountOptions) (*Widget, error) {
	cfg := widgetconfig.Resolve(o.ConfigOptions, o.Sources...)

	ids := identity.NewStore(o.Storage, o.Logger)
	if o.IdentityObserver != nil {
		ids.WithObserver(o.IdentityObserver)
	}
	threadID := ids.GetOrCreateThreadID(cfg)

	w, err := New(Deps{
		Config:   cfg,
		ThreadID: threadID,
		Document: o.Document,
		Client:   o.Client,
		Logger:   o.Logger,
		Observer: o.ExchangeObserver,
	})
	if err != nil {
		o.Logger.Error().Err(err).Msg("widget failed to initialize")
		return nil, err
	}
	return w, nil
}
