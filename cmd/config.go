package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/config"
)

var configCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change stored configuration",
		Long: "Show or change stored configuration.\n\n" +
			"Without flags the fully resolved configuration is printed.\n" +
			"--set writes overrides into the config file; --reset deletes it.\n" +
			"Environment variables (VMCTL_*) always win over the file.",
		Args: cobra.NoArgs,
		RunE: runConfig,
	}
	cmd.Flags().StringArray("set", nil, "store a key=value override (repeatable)")
	cmd.Flags().Bool("reset", false, "delete all stored overrides")
	return cmd
}()

func runConfig(cmd *cobra.Command, _ []string) error {
	path := conf.ConfigFile()
	if cfgFile != "" {
		path = cfgFile
	}

	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := config.ResetOverrides(path); err != nil {
			return err
		}
		fmt.Println("Configuration reset to defaults.")
		return nil
	}

	if sets, _ := cmd.Flags().GetStringArray("set"); len(sets) > 0 {
		for _, kv := range sets {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("--set wants key=value, got %q", kv)
			}
			if err := config.SetOverride(path, key, value); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", key, value)
		}
		fmt.Printf("Stored in %s\n", path)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(conf)
}
