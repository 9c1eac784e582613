// Command rollout resolves firmware updates for a device report against a
// release catalog and downloads the validated binary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/asaidimu/rollout"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "rollout",
		Short:        "Resolve firmware updates for a hardware wallet",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is rollout.yaml in the user config dir or cwd)")
	root.PersistentFlags().String("base-url", "", "firmware server base URL")
	root.PersistentFlags().String("releases", "", "release catalog: file path, URL, or path relative to base-url")
	root.PersistentFlags().Duration("timeout", 0, "download timeout")
	root.PersistentFlags().StringP("output", "o", "", "output format (json|yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("features", "", "device features JSON file (- for stdin)")

	root.AddCommand(newCheckCmd(&configFile), newFetchCmd(&configFile))
	return root
}

type checkOutput struct {
	Status   rollout.Status    `json:"status" yaml:"status"`
	Decision *rollout.Decision `json:"decision" yaml:"decision"`
}

func newCheckCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show the firmware update offered to a device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			d := env.resolver.CheckForUpdate(env.features, env.releases)
			return render(cmd.OutOrStdout(), env.config.Output, checkOutput{
				Status:   rollout.FirmwareStatus(env.features, d),
				Decision: d,
			})
		},
	}
}

func newFetchCmd(configFile *string) *cobra.Command {
	var (
		version      string
		out          string
		btcOnly      bool
		intermediary bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the validated firmware binary for a device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			opts := rollout.BinaryOptions{BitcoinOnly: btcOnly, Intermediary: intermediary}
			if version != "" {
				v, err := rollout.ParseVersion(version)
				if err != nil {
					return err
				}
				opts.Version = &v
			} else if d := rollout.Resolve(env.features, env.releases); d != nil {
				opts.Version = &d.Release.Version
			}

			bin, err := env.resolver.ResolveBinary(cmd.Context(), env.features, env.releases, opts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, bin.Data, 0600); err != nil {
				return fmt.Errorf("failed to write binary: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(bin.Data), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "firmware version to install (default: resolved release)")
	cmd.Flags().StringVar(&out, "out", "firmware.bin", "output file")
	cmd.Flags().BoolVar(&btcOnly, "btc-only", false, "download the bitcoin-only build")
	cmd.Flags().BoolVar(&intermediary, "intermediary", false, "download the intermediary bootloader-upgrade image")
	return cmd
}

type environment struct {
	config   appConfig
	resolver *rollout.Resolver
	features rollout.DeviceFeatures
	releases []rollout.Release
}

func setup(cmd *cobra.Command, configFile string) (*environment, error) {
	cfg, err := loadConfig(cmd, configFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log.Level, cmd)
	if err != nil {
		return nil, err
	}
	resolver, err := rollout.NewResolver(rollout.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	featuresPath, _ := cmd.Flags().GetString("features")
	if featuresPath == "" {
		return nil, fmt.Errorf("--features is required")
	}
	data, err := readInput(cmd.InOrStdin(), featuresPath)
	if err != nil {
		return nil, err
	}
	features, err := rollout.ParseFeatures(data)
	if err != nil {
		return nil, err
	}

	releases, err := loadReleases(cmd.Context(), resolver, cfg.Releases)
	if err != nil {
		return nil, err
	}
	return &environment{config: cfg, resolver: resolver, features: features, releases: releases}, nil
}

// loadReleases reads a local catalog file when one exists at location and
// fetches it through the resolver otherwise.
func loadReleases(ctx context.Context, resolver *rollout.Resolver, location string) ([]rollout.Release, error) {
	if _, err := os.Stat(location); err == nil {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read releases: %w", err)
		}
		return rollout.ParseReleases(data)
	}
	return resolver.FetchReleases(ctx, location)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func render(w io.Writer, format string, v any) error {
	if format == "yaml" {
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
