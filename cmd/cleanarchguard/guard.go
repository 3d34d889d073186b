package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/orgflow/pkg/logging"
)

type guardConfig struct {
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Layers            struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"layers"`
}

var (
	defaultDomainDirs         = []string{"domain"}
	defaultApplicationDirs    = []string{"services"}
	defaultInterfacesDirs     = []string{"interfaces", "presentation"}
	defaultInfrastructureDirs = []string{"infrastructure"}
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:           "cleanarchguard",
		Short:         "Validate layer dependencies under modules/",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logrus.InfoLevel
			if debug {
				level = logrus.DebugLevel
				cleanarch.Log.SetOutput(os.Stderr)
			}
			logger := logging.ConsoleLogger(level)

			cfg, err := loadGuardConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			root, err := filepath.Abs(cfg.Root)
			if err != nil {
				return fmt.Errorf("resolve root: %w", err)
			}

			validator := cleanarch.NewValidator(layerAliases(cfg))
			ok, verrs, err := validator.Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
			if err != nil {
				return fmt.Errorf("validate %s: %w", root, err)
			}
			violations := filterViolations(verrs, cfg)
			if !ok && len(violations) > 0 {
				for _, v := range violations {
					logger.WithField("root", root).Error(v.Error())
				}
				return fmt.Errorf("%d layer violations", len(violations))
			}
			logger.WithField("root", root).Info("layer boundaries ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", ".gocleanarch.yml", "Guard config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Print go-cleanarch debug output")
	return cmd
}

// loadGuardConfig reads path. A missing file falls back to the defaults
// rooted at modules/.
func loadGuardConfig(path string) (*guardConfig, error) {
	cfg := &guardConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "modules"
	}
	return cfg, nil
}

func layerAliases(cfg *guardConfig) map[string]cleanarch.Layer {
	aliases := map[string]cleanarch.Layer{}
	addLayer(aliases, cfg.Layers.Domain, defaultDomainDirs, cleanarch.LayerDomain)
	addLayer(aliases, cfg.Layers.Application, defaultApplicationDirs, cleanarch.LayerApplication)
	addLayer(aliases, cfg.Layers.Interfaces, defaultInterfacesDirs, cleanarch.LayerInterfaces)
	addLayer(aliases, cfg.Layers.Infrastructure, defaultInfrastructureDirs, cleanarch.LayerInfrastructure)
	return aliases
}

func addLayer(dst map[string]cleanarch.Layer, custom, defaults []string, layer cleanarch.Layer) {
	dirs := defaults
	if len(custom) > 0 {
		dirs = custom
	}
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			dst[d] = layer
		}
	}
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filterViolations drops cross-module findings that involve a shared module
// and anything matching an allow_violations substring.
func filterViolations(verrs []cleanarch.ValidationError, cfg *guardConfig) []cleanarch.ValidationError {
	shared := make(map[string]bool, len(cfg.SharedModules))
	for _, m := range cfg.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = true
		}
	}

	var out []cleanarch.ValidationError
	for _, v := range verrs {
		msg := v.Error()
		if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 && (shared[m[1]] || shared[m[2]]) {
			continue
		}
		if allowed(msg, cfg.AllowedViolations) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func allowed(msg string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
