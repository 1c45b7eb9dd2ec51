package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/twinpane/internal/profiles"
)

func openProfileStore() (*profiles.Store, error) {
	return profiles.Open(GetConfig().Profiles.ProfilesFile)
}

// newProfileCmd creates the 'profile' command group.
func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved connection profiles",
		Long: `Save, list, show and delete named connections.

Profiles live in an INI file (profiles_file in the [profiles] config
section), one section per profile.`,
	}

	cmd.AddCommand(newProfileSaveCmd())
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileShowCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	return cmd
}

func newProfileSaveCmd() *cobra.Command {
	var askPassword bool

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the connection flags under a name",
		Long: `Save --host, --port, --user and --password under a name.
An existing profile with the same name is replaced; values not given as
flags are kept from it.

Examples:
  twinpane profile save work --host sftp.example.com --user me
  twinpane profile save work --ask-password`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}

			p, err := store.Get(args[0])
			if err != nil {
				p = profiles.Profile{Name: args[0]}
			}
			if conn.host != "" {
				p.Host = conn.host
			}
			if conn.port != 0 {
				p.Port = conn.port
			}
			if conn.user != "" {
				p.Username = conn.user
			}
			if conn.password != "" {
				p.Secret = conn.password
			}
			if askPassword {
				secret, err := readPassword(fmt.Sprintf("Password for %s: ", p.Name))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				p.Secret = secret
			}
			if p.Port == 0 {
				p.Port = GetConfig().SSH.Port
			}

			if err := store.Put(p); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s\n", p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&askPassword, "ask-password", false, "Prompt for the password to store")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}
			names := store.Names()
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No profiles in %s\n", store.Path())
				return nil
			}
			for _, name := range names {
				p, _ := store.Get(name)
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			return nil
		},
	}
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile (without its password)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}
			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:     %s\n", p.Name)
			fmt.Fprintf(out, "Host:     %s\n", p.Host)
			fmt.Fprintf(out, "Port:     %d\n", p.Port)
			fmt.Fprintf(out, "Username: %s\n", p.Username)
			if p.Secret != "" {
				fmt.Fprintln(out, "Password: (saved)")
			} else {
				fmt.Fprintln(out, "Password: (prompted)")
			}
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
			return nil
		},
	}
}
