package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/marcus/soilnet/internal/config"
	"github.com/marcus/soilnet/internal/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Read and change client settings",
	GroupID: "tools",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		keys := config.Keys
		if len(args) == 1 {
			if err := checkConfigKey(args[0]); err != nil {
				return err
			}
			keys = args
		}
		values := make(map[string]string, len(keys))
		for _, k := range keys {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			values[k] = v
		}
		if jsonOut {
			return output.JSON(values)
		}
		if len(args) == 1 {
			fmt.Println(values[args[0]])
			return nil
		}
		for _, k := range keys {
			fmt.Printf("%s = %s\n", k, values[k])
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Example: `  soilnet config set server_url https://soil.example.com
  soilnet config set signup.poll.max_attempts 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfigKey(args[0]); err != nil {
			return err
		}
		if err := config.Set(configDir, args[0], args[1]); err != nil {
			return err
		}
		output.Success("%s = %s", args[0], args[1])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(filepath.Join(configDir, "config.yaml"))
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
