package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/ledgerbook-api/internal/http/routes"
)

func newOpenAPICmd() *cobra.Command {
	var outputFile, baseURL string
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the admin API OpenAPI document",
		Args:  cobra.NoArgs,
		// No database or configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := humachi.New(chi.NewRouter(), routes.NewHumaConfig(baseURL))
			routes.Register(api, routes.StubHandlers())
			spec := api.OpenAPI()

			var data []byte
			var err error
			if asYAML {
				data, err = yaml.Marshal(spec)
			} else {
				data, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("error marshaling OpenAPI spec: %w", err)
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, data, 0o644); err != nil {
					return fmt.Errorf("error writing to file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "OpenAPI spec written to %s\n", outputFile)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&outputFile, "output", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML instead of JSON")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL to advertise in the document")
	return cmd
}
