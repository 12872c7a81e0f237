package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/capturebadge/bootstrap"
	"pkt.systems/pslog"
)

func newInstallCmd() *cobra.Command {
	var opts bootstrap.Options
	var browser string
	var outputDir string
	var overwrite bool
	var sets []string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the native messaging host with a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			if opts.Binary == "" {
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				opts.Binary = exe
			}
			if outputDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				outputDir = filepath.Join(home, ".capturebadge")
			}
			opts.Browser = bootstrap.Browser(browser)
			for _, raw := range sets {
				override, err := bootstrap.ParseOverride(raw)
				if err != nil {
					return err
				}
				opts.Overrides = append(opts.Overrides, override)
			}
			paths, err := bootstrap.Write(outputDir, overwrite, opts)
			if err != nil {
				return err
			}
			logger.Info("install wrote", "path", paths.ConfigPath, "name", "config.yaml")
			logger.Info("install wrote", "path", paths.LauncherPath, "name", "launcher")
			logger.Info("install wrote", "path", paths.ManifestPath, "name", "manifest")
			return nil
		},
	}
	cmd.Flags().StringVar(&browser, "browser", string(bootstrap.BrowserChrome), "browser: chrome, chromium or firefox")
	cmd.Flags().StringSliceVar(&opts.Allowed, "allow", nil, "allowed extension id or origin (repeatable)")
	cmd.Flags().StringVar(&opts.HostName, "name", bootstrap.DefaultHostName, "native messaging host name")
	cmd.Flags().StringVar(&opts.Binary, "binary", "", "capturebadge executable (default: this binary)")
	cmd.Flags().StringVar(&opts.ManifestDir, "manifest-dir", "", "override the browser's NativeMessagingHosts directory")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for config and launcher (default ~/.capturebadge)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "config override path=value (repeatable)")
	cmd.Flags().BoolVarP(&overwrite, "force", "f", false, "overwrite existing files")
	return cmd
}
