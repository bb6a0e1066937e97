package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	dockerpkg "github.com/dyluth/easel/internal/docker"
	"github.com/dyluth/easel/internal/instance"
	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local instances",
	Long: `List every local easel instance started with 'easel up'.

For each instance, displays:
  • Instance name
  • Status (Running/Degraded/Stopped)
  • Board and Redis port
  • Directory it was started from
  • Uptime (for running instances)

Use --json for machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	infos, err := instance.List(ctx, cli)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		return outputJSON(out, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No easel instances found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Run 'easel up' to start a new instance.")
		return nil
	}
	outputTable(out, infos, time.Now())
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func outputJSON(w io.Writer, infos []instance.InstanceInfo) error {
	if infos == nil {
		infos = []instance.InstanceInfo{}
	}
	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instances: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func outputTable(w io.Writer, infos []instance.InstanceInfo, now time.Time) {
	fmt.Fprintf(w, "%-15s %-10s %-16s %-6s %-30s %s\n", "INSTANCE", "STATUS", "BOARD", "PORT", "DIRECTORY", "UPTIME")

	for _, info := range infos {
		workdir := info.Workdir
		if len(workdir) > 30 {
			workdir = "..." + workdir[len(workdir)-27:]
		}

		uptime := "-"
		if info.Status == instance.StatusRunning && info.Created > 0 {
			uptime = formatDuration(now.Sub(time.Unix(info.Created, 0)))
		}

		port := "-"
		if info.Port > 0 {
			port = fmt.Sprintf("%d", info.Port)
		}

		fmt.Fprintf(w, "%-15s %-10s %-16s %-6s %-30s %s\n", info.Name, info.Status, info.Board, port, workdir, uptime)
	}
}
