package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"borrowck/internal/config"
)

// loadConfig reads --config or the nearest borrowck.toml, then applies the
// root flags that override [output].
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var conf config.Config
	if path != "" {
		conf, err = config.Load(path)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return config.Config{}, err
		}
		conf, err = config.Discover(cwd)
	}
	if err != nil {
		return config.Config{}, err
	}
	if flags.Changed("color") {
		if conf.Output.Color, err = flags.GetString("color"); err != nil {
			return config.Config{}, err
		}
	}
	return conf, nil
}
