package cli

import (
	"fmt"
	"log"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/internal/github"
	"github.com/Fumiaki0604/reqflow/internal/llm"
	"github.com/Fumiaki0604/reqflow/internal/notify"
	"github.com/Fumiaki0604/reqflow/internal/source"
	"github.com/Fumiaki0604/reqflow/internal/synth"
	"github.com/Fumiaki0604/reqflow/internal/workflow"
)

// loadConfig loads and validates the configuration shared by all commands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("Warning: config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	return cfg, nil
}

// buildPipeline wires the connectors, synthesizer and publisher for one
// process. Sources without credentials are simply not registered; they
// contribute zero results and the pipeline degrades per stage.
func buildPipeline(cfg *config.Config) (*workflow.Pipeline, func(), error) {
	provider, err := llm.NewProvider(&cfg.LLM)
	if err != nil {
		// The synthesizer degrades without a provider; Jira falls back to
		// an untranslated query.
		log.Printf("Warning: failed to create LLM provider: %v", err)
		provider = nil
	}

	var connectors []source.Connector
	if cfg.Jira.Configured() {
		connectors = append(connectors, source.NewJiraConnector(cfg.Jira, provider))
	}
	if cfg.Notion.Configured() {
		connectors = append(connectors, source.NewNotionConnector(cfg.Notion))
	}
	if cfg.Backlog.Configured() {
		connectors = append(connectors, source.NewBacklogConnector(cfg.Backlog))
	}

	gh, err := github.NewClient(cfg.GitHub.Token)
	if err != nil {
		if provider != nil {
			provider.Close()
		}
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	pipeline := workflow.New(connectors, synth.New(provider), gh)

	closeFn := func() {
		if provider != nil {
			provider.Close()
		}
		gh.Close()
	}

	return pipeline, closeFn, nil
}

// buildNotifier wires the urgent-item notifier. Missing credentials leave
// the corresponding dependency nil; Run reports that as a configuration
// error rather than failing at startup.
func buildNotifier(cfg *config.Config) *notify.Notifier {
	var lister notify.UrgentLister
	if cfg.Backlog.Configured() {
		lister = source.NewBacklogConnector(cfg.Backlog)
	}

	var sink notify.Sink
	if cfg.Slack.BotToken != "" {
		sink = notify.NewSlackClient(cfg.Slack.BotToken)
	}

	return notify.NewNotifier(lister, sink, cfg.Notify)
}
