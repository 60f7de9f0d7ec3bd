package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmctl-dev/vmctl/network"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the SSH key pair for guest login",
	Long: "Generate the SSH key pair for guest login.\n\n" +
		"Writes an ed25519 pair to the configured key path. The public key\n" +
		"line is printed for pasting into user-data's ssh_authorized_keys.",
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func runKeygen(_ *cobra.Command, _ []string) error {
	created, err := network.EnsureKeyPair(conf.SSHKey, "vmctl")
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	if created {
		fmt.Printf("Key pair written to %s and %s.pub\n", conf.SSHKey, conf.SSHKey)
	} else {
		fmt.Printf("Key pair already present at %s\n", conf.SSHKey)
	}

	line, err := network.AuthorizedKey(conf.SSHKey)
	if err != nil {
		return err
	}
	fmt.Printf("\nAdd to user-data under ssh_authorized_keys:\n  - %s\n", line)
	return nil
}
