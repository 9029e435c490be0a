package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// remoteView is a remote as printed: the token is masked and the transport
// is resolved from the URL.
type remoteView struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Transport string `json:"transport"`
	Identity  string `json:"identity,omitempty"`
	Token     string `json:"token,omitempty"`
	NATSURL   string `json:"nats_url,omitempty"`
	Active    bool   `json:"active"`
}

func newRemoteView(cfg RemotesConfig, name string) remoteView {
	r := cfg.Remotes[name]
	return remoteView{
		Name:      name,
		URL:       r.URL,
		Transport: remoteTransport(r.URL),
		Identity:  r.Identity,
		Token:     maskToken(r.Token),
		NATSURL:   r.NATSURL,
		Active:    name == cfg.Active,
	}
}

// remoteTransport is grpc for a bare host:port and http otherwise.
func remoteTransport(url string) string {
	if url != "" && !strings.Contains(url, "://") {
		return "grpc"
	}
	return "http"
}

// updateRemotes loads the remotes file, applies fn and writes it back.
func updateRemotes(fn func(cfg *RemotesConfig) error) (RemotesConfig, error) {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return cfg, err
	}
	if err := fn(&cfg); err != nil {
		return cfg, err
	}
	return cfg, saveRemotesConfig(cfg)
}

func knownRemote(cfg *RemotesConfig, name string) error {
	if _, ok := cfg.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	return nil
}

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named server remotes",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named remote",
	Long: `Add or update a named remote. An http:// or https:// URL selects the
HTTP transport; a bare host:port selects gRPC.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: args[1]}
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		r.Identity, _ = cmd.Flags().GetString("as")

		cfg, err := updateRemotes(func(cfg *RemotesConfig) error {
			cfg.Remotes[name] = r
			return nil
		})
		if err != nil {
			return err
		}
		view := newRemoteView(cfg, name)
		return emit(cmd.OutOrStdout(), view, func(w io.Writer) {
			fmt.Fprintf(w, "Saved remote %s (%s via %s)\n", name, view.URL, view.Transport)
		})
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		_, err := updateRemotes(func(cfg *RemotesConfig) error {
			if err := knownRemote(cfg, name); err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed remote %s\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		_, err := updateRemotes(func(cfg *RemotesConfig) error {
			if err := knownRemote(cfg, name); err != nil {
				return err
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active remote: %s\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		views := make([]remoteView, 0, len(cfg.Remotes))
		for _, name := range slices.Sorted(maps.Keys(cfg.Remotes)) {
			views = append(views, newRemoteView(cfg, name))
		}
		return emit(cmd.OutOrStdout(), views, func(w io.Writer) { printRemoteList(w, views) })
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a remote (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; specify a name or run 'trustplay remote use <name>'")
		}
		if err := knownRemote(&cfg, name); err != nil {
			return err
		}
		view := newRemoteView(cfg, name)
		return emit(cmd.OutOrStdout(), view, func(w io.Writer) { printRemote(w, view) })
	},
}

// maskToken keeps the first 8 characters of tok and stars the rest.
func maskToken(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + strings.Repeat("*", len(tok)-8)
	}
	return tok
}

func init() {
	remoteAddCmd.Flags().String("token", "", "bearer token for authentication")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for event streaming")
	remoteAddCmd.Flags().String("as", "", "identity to act as against this remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
