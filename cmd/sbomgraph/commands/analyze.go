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
	"log/slog"

	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/printer"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/spf13/cobra"
)

func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "analyze <sbom.json>...",
		Short:             "Build the dependency graph and propagate vulnerabilities",
		DisableAutoGenTag: true,
		Long: `Build the dependency graph of one or more CycloneDX documents and propagate
every vulnerability to all components depending on the affected one.

If more than one document is passed, the documents are reconciled first. The
first document is the base, the source name of each document is derived from
its file name. Use "-" to read a document from stdin.`,
		Example: `  # Analyze a single SBOM
  sbomgraph analyze sbom.json

  # Compare and combine the output of two scanners
  sbomgraph analyze trivy.json grype.json

  # Print the full result as json
  sbomgraph analyze sbom.json -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().Int("top", 10, "Number of most exposed components to print")
	cmd.Flags().BoolP("quiet", "q", false, "Do not render a progress bar")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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
	slog.Info("analysis complete", "components", result.Statistics.TotalComponents, "vulnerabilities", result.Statistics.TotalVulnerabilities)

	out := cmd.OutOrStdout()
	if config.RuntimeConfig.Output != "table" {
		return printer.Structured(out, config.RuntimeConfig.Output, result)
	}

	top, _ := cmd.Flags().GetInt("top")
	printer.PrintAnalysis(out, result, top)
	printer.PrintSourceStats(out, result.MultiSourceStats)
	return nil
}
