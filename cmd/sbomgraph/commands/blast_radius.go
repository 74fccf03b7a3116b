// Copyright (C) 2025 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package commands

import (
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/printer"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/spf13/cobra"
)

func NewBlastRadiusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "blast-radius <sbom.json>...",
		Short:             "Rank components by the number of components depending on them",
		DisableAutoGenTag: true,
		Long: `Rank components by their blast radius: the number of distinct components that
depend on them directly or transitively. A vulnerability in a component with a
large blast radius reaches a large part of the application.`,
		Example: `  # The ten components most of the application depends on
  sbomgraph blast-radius sbom.json --top 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBlastRadius,
	}

	cmd.Flags().Int("top", 20, "Number of components to print, 0 prints all")
	cmd.Flags().BoolP("quiet", "q", false, "Do not render a progress bar")
	return cmd
}

func runBlastRadius(cmd *cobra.Command, args []string) error {
	docs, err := readDocuments(args)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	result, err := runJob(ctx, services.NewWorker(newAnalysisService()), docs, progressWriter(cmd))
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	entries := printer.RankBlastRadius(result, top)
	if config.RuntimeConfig.Output != "table" {
		return printer.Structured(cmd.OutOrStdout(), config.RuntimeConfig.Output, entries)
	}
	printer.PrintBlastRadius(cmd.OutOrStdout(), entries)
	return nil
}
