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
	"time"

	"github.com/briandowns/spinner"
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/printer"
	"github.com/l3montree-dev/sbomgraph/normalize"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/spf13/cobra"
)

func NewMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "merge <sbom.json> <sbom.json>...",
		Short:             "Reconcile several SBOMs of the same application into one",
		DisableAutoGenTag: true,
		Long: `Reconcile the output of several tools for the same application into one
canonical CycloneDX document.

Components are identified by their normalized package url, falling back to
name and version. Every merged component and vulnerability records the sources
it was found in. The document is written to stdout, the comparison of the
sources to stderr.`,
		Example: `  # Merge the output of three scanners
  sbomgraph merge trivy.json grype.json syft.json > merged.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMerge,
	}

	cmd.Flags().BoolP("quiet", "q", false, "Do not render a spinner")
	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	docs, err := readDocuments(args)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var s *spinner.Spinner
	if w := progressWriter(cmd); w != nil {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w))
		s.Suffix = " merging sboms"
		s.Start()
	}

	merger := services.NewMergeService(config.RuntimeConfig.Scoring, config.RuntimeConfig.CheckpointInterval)
	merged, err := merger.Merge(ctx, docs)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return describeError(ctx, err)
	}
	slog.Info("merged sboms", "sources", len(docs), "components", len(merged.Components), "vulnerabilities", len(merged.Vulnerabilities))

	if err := normalize.EncodeCdxBom(cmd.OutOrStdout(), normalize.ToCdxBom(merged)); err != nil {
		return err
	}
	printer.PrintSourceStats(cmd.ErrOrStderr(), merged.MultiSourceStats)
	return nil
}
