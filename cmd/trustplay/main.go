package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/client"
	"github.com/deepesh-sr/Trustplay/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	identity   string
	token      string
	jsonOutput bool
	configPath string

	tpClient client.TrustplayClient
)

// defaultIdentity resolves the caller from TRUSTPLAY_IDENTITY, the active
// remote, then git user.name.
func defaultIdentity() string {
	if s := os.Getenv("TRUSTPLAY_IDENTITY"); s != "" {
		return s
	}
	if id := activeRemote().Identity; id != "" {
		return id
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

func defaultHTTPURL() string {
	if s := os.Getenv("TRUSTPLAY_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("TRUSTPLAY_SERVER"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" && !strings.Contains(u, "://") {
		return u
	}
	return "localhost:9090"
}

func defaultTransport() string {
	if s := os.Getenv("TRUSTPLAY_TRANSPORT"); s != "" {
		return s
	}
	return remoteTransport(activeRemote().URL)
}

func defaultToken() string {
	if s := os.Getenv("TRUSTPLAY_TOKEN"); s != "" {
		return s
	}
	return activeRemote().Token
}

// skipClient marks commands that run without a server connection.
func skipClient(cmd *cobra.Command, args []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "trustplay <command>",
	Short:         "CLI for the Trustplay claim settlement service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		tpClient, err = newClient(transport)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tpClient != nil {
			tpClient.Close()
			tpClient = nil
		}
	},
}

func newClient(kind string) (client.TrustplayClient, error) {
	switch kind {
	case "http":
		return client.NewHTTPClient(httpURL, token, identity), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, token, identity)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", kind)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", defaultTransport(), "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", defaultIdentity(), "caller identity sent with every request")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "server config file (serve, export)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "rooms", Title: "Rooms:"},
		&cobra.Group{ID: "claims", Title: "Claims:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Rooms
	rootCmd.AddCommand(roomCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(vaultCmd)

	// Claims
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(whitelistCmd)

	// Views
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(eventsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	ui.SetColor(ui.ShouldUseColor(os.Stdout))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderFailure("Error:"), err)
		os.Exit(1)
	}
}
