package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i2y/oaicompat/plugin"
)

func newInfoCmd(flags *globalFlags) *cobra.Command {
	var asManifest bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show extension metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			m := plugin.DefaultManifest()
			if flags.manifest != "" {
				loaded, err := plugin.LoadManifest(flags.manifest)
				if err != nil {
					return err
				}
				m = *loaded
			}

			if asManifest {
				data, err := m.Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			md := m.Extension
			fmt.Fprintf(out, "id:           %s\n", md.ID)
			fmt.Fprintf(out, "name:         %s\n", md.Name)
			fmt.Fprintf(out, "version:      %s\n", md.Version)
			fmt.Fprintf(out, "api version:  %s\n", md.APIVersion)
			fmt.Fprintf(out, "capabilities: %s\n", strings.Join(m.Capabilities, ", "))

			providerJSON, err := plugin.ProviderMetadataJSON()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "provider:     %s\n", providerJSON)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asManifest, "manifest-yaml", false, "print the manifest as YAML")
	return cmd
}
