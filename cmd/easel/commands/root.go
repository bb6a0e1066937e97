package commands

import (
	"fmt"

	"github.com/dyluth/easel/internal/config"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// Global flags
var (
	configPath   string
	boardFlag    string
	redisURLFlag string
	instanceFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "easel",
	Short: "easel - shared whiteboard canvas on Redis",
	Long: `easel is a real-time collaborative canvas. Every collaborator runs a
canvas client against a shared Redis board: shapes, strokes and sticky notes
are written through a mutation gateway, undo is local to each user, and live
cursors travel on a separate presence channel.

The CLI starts a local Redis for a board, inspects and renders boards, replays
scripted gestures and serves boards to remote renderers over WebSocket.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&boardFlag, "board", "b", "", "Board id (overrides the configuration)")
	rootCmd.PersistentFlags().StringVar(&redisURLFlag, "redis-url", "", "Redis URL (overrides the configuration and --name)")
	rootCmd.PersistentFlags().StringVarP(&instanceFlag, "name", "n", "", "Local instance started with 'easel up'")
}
