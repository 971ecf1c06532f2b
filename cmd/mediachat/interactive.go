package main

import (
	"mediachat/cmd/mediachat/chat"
	"mediachat/cmd/mediachat/ui"
	"mediachat/internal/config"
	"mediachat/internal/dispatch"
	"mediachat/internal/failure"
	"mediachat/internal/logging"
	"mediachat/internal/transport"
)

// newSession builds a session that talks to the configured endpoint.
func newSession(c *config.Config) *dispatch.Session {
	client := transport.NewClient(c.Client.Endpoint)
	return dispatch.NewSession(client,
		dispatch.WithCatalog(failure.CatalogFor(c.Client.Locale)),
		dispatch.WithListener(logEvent),
	)
}

func logEvent(ev dispatch.Event) {
	log := logging.Get(logging.CategorySession).With("cycle", ev.CycleID)
	if ev.Outcome == dispatch.OutcomeFailure {
		log.Info("cycle resolved: failure category=%s", ev.Category)
		return
	}
	log.Info("cycle resolved: success stats_updated=%v", ev.StatsUpdated)
}

// runInteractiveChat launches the full-screen chat.
func runInteractiveChat() error {
	logging.Get(logging.CategoryBoot).Info("starting chat against %s", cfg.Client.Endpoint)
	return chat.Run(chat.Config{
		Session:  newSession(cfg),
		Styles:   ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)),
		Locale:   cfg.Client.Locale,
		Endpoint: cfg.Client.Endpoint,
	})
}
