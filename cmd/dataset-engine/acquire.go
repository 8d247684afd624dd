// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dataset-engine/internal/acquire"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download and extract the raw dataset archive",
	Long: `Acquire downloads the OD_MetalDAM archive (by default the GitHub archive of
ari-dasci/OD_MetalDAM), optionally verifies its SHA-256 digest, and extracts
it into the raw directory. A completed extraction is skipped unless --force
is given. Set a token in .secrets/github-token to authenticate.`,
	RunE: runAcquire,
}

func init() {
	addAcquireFlags(acquireCmd)
	rootCmd.AddCommand(acquireCmd)
}

func addAcquireFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "archive URL")
	cmd.Flags().String("archive-dir", "", "directory for the downloaded archive")
	cmd.Flags().String("raw-dir", "", "directory for the extracted dataset")
	cmd.Flags().String("sha256", "", "expected archive SHA-256 digest")
	cmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 10m)")
	cmd.Flags().Bool("force", false, "download and extract again")
}

var acquireFlagKeys = map[string]string{
	"url":         "acquisition.url",
	"archive-dir": "acquisition.archive_dir",
	"raw-dir":     "acquisition.raw_dir",
	"sha256":      "acquisition.sha256",
	"timeout":     "acquisition.timeout",
	"force":       "acquisition.force",
}

func runAcquire(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, acquireFlagKeys); err != nil {
		return err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	return doAcquire(cmd, cfg.Acquisition)
}

func doAcquire(cmd *cobra.Command, cfg types.AcquisitionConfig) error {
	client := &http.Client{Timeout: cfg.Timeout}
	res, err := acquire.Acquire(cmd.Context(), client, cfg, os.Stdout)
	if err != nil {
		return err
	}
	logger.Debug("acquisition finished", "archive", res.ArchivePath, "files", res.Files, "skipped", res.Skipped)
	return nil
}
