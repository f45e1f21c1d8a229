package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fumiaki0604/reqflow/internal/workflow"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

func newRunCmd() *cobra.Command {
	var (
		query   string
		owner   string
		repo    string
		sources []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the search-and-synthesize workflow once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var kinds []models.SourceKind
			for _, s := range sources {
				kind, ok := models.ParseSourceKind(s)
				if !ok {
					return fmt.Errorf("unknown source: %s", s)
				}
				kinds = append(kinds, kind)
			}

			pipeline, closeFn, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			result, runErr := pipeline.Execute(cmd.Context(), workflow.Request{
				Query:   query,
				Owner:   owner,
				Repo:    repo,
				Sources: kinds,
			})

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}

			return runErr
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "free-text search query")
	cmd.Flags().StringVar(&owner, "owner", "", "GitHub repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository name")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "sources to search (jira, notion, backlog); default all configured")
	cmd.MarkFlagRequired("query")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("repo")

	return cmd
}
