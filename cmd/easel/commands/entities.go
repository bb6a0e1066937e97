package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/easel/internal/filter"
	"github.com/dyluth/easel/internal/inventory"
	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/resolver"
	"github.com/dyluth/easel/internal/store"
	"github.com/dyluth/easel/internal/timespec"
	"github.com/dyluth/easel/internal/watch"
	"github.com/spf13/cobra"
)

var (
	entitiesOutput string
	entitiesSince  string
	entitiesUntil  string
	entitiesKind   string
	entitiesOwner  string
	entitiesAll    bool
	entitiesWait   time.Duration
)

var entitiesCmd = &cobra.Command{
	Use:   "entities [ENTITY_ID]",
	Short: "Inspect the entities of a board",
	Long: `Inspect board entities in list or get mode.

List Mode (no ENTITY_ID):
  Displays entities matching the filters in paint order, as a table or a
  JSONL stream. Soft-deleted entities are hidden unless --all is given.

Get Mode (with ENTITY_ID):
  Displays one entity as pretty-printed JSON. Short ids (at least 4
  characters) are accepted. With --wait, a full id that does not exist yet
  is polled for until it appears.

Output Formats (list mode only):
  default - Human-readable table
  jsonl   - Line-delimited JSON, one entity per line

Examples:
  # List the visible entities
  easel entities

  # Stickies created in the last 10 minutes, as JSON
  easel entities --kind=sticky --since=10m -o jsonl | jq .text

  # Everything Ada drew, including deleted shapes
  easel entities --owner=ada --all

  # One entity by short id
  easel entities a3f5b8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEntities,
}

func init() {
	entitiesCmd.Flags().StringVarP(&entitiesOutput, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	entitiesCmd.Flags().StringVar(&entitiesSince, "since", "", "Show entities created after time (duration or RFC3339)")
	entitiesCmd.Flags().StringVar(&entitiesUntil, "until", "", "Show entities created before time (duration or RFC3339)")
	entitiesCmd.Flags().StringVar(&entitiesKind, "kind", "", "Filter by kind (glob pattern)")
	entitiesCmd.Flags().StringVar(&entitiesOwner, "owner", "", "Filter by owner id (exact match)")
	entitiesCmd.Flags().BoolVar(&entitiesAll, "all", false, "Include soft-deleted entities")
	entitiesCmd.Flags().DurationVar(&entitiesWait, "wait", 0, "Get mode: wait this long for the entity to appear")
	rootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	var format inventory.OutputFormat
	switch entitiesOutput {
	case "default":
		format = inventory.OutputFormatDefault
	case "jsonl":
		format = inventory.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", entitiesOutput),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	now := time.Now()
	since, until, err := timespec.ParseRange(entitiesSince, entitiesUntil, now)
	if err != nil {
		return printer.Error("invalid time range", err.Error(), nil)
	}
	criteria := &filter.Criteria{
		SinceMs:        since,
		UntilMs:        until,
		KindGlob:       entitiesKind,
		Owner:          entitiesOwner,
		IncludeDeleted: entitiesAll,
	}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid --kind pattern", err.Error(), nil)
	}

	cfg, rdb, client, err := openBoard(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if len(args) == 1 {
		if entitiesWait > 0 {
			e, err := watch.PollForEntity(ctx, client, args[0], entitiesWait)
			if err != nil {
				return printer.Error(fmt.Sprintf("entity '%s' did not appear", args[0]), err.Error(), nil)
			}
			return inventory.FormatSingleJSON(out, e)
		}

		all, err := client.ListEntities(ctx)
		if err != nil {
			return err
		}
		id, err := resolver.ResolveEntityID(all, args[0])
		if err != nil {
			var amb *resolver.AmbiguousError
			switch {
			case resolver.IsNotFoundError(err):
				return printer.Error(
					fmt.Sprintf("entity with ID '%s' not found", args[0]),
					fmt.Sprintf("No entity on board '%s' has that id.", cfg.Board),
					[]string{"List all entities:\n  easel entities --all"},
				)
			case errors.As(err, &amb):
				return printer.Error("ambiguous entity ID", resolver.FormatAmbiguousError(amb), nil)
			default:
				return printer.Error("invalid entity ID", err.Error(), nil)
			}
		}
		e, err := client.GetEntity(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read entity %s: %w", id, err)
		}
		return inventory.FormatSingleJSON(out, e)
	}

	all, err := client.ListEntities(ctx)
	if err != nil {
		return err
	}
	store.SortPaintOrder(all)
	matching := criteria.Apply(all)

	if format == inventory.OutputFormatJSONL {
		return inventory.FormatJSONL(out, matching)
	}
	_, err = inventory.FormatTable(out, matching, cfg.Board, now)
	return err
}
