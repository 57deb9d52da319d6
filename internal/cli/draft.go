package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/internal/store"
)

// NewDraftCmd creates the draft command group. Drafts keep session input
// (topic and agent roster) in the local cache so a session can be prepared
// offline and created later with `session create --from-draft`.
func NewDraftCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage local session drafts",
		Long: `Store session input locally before creating the session.

Examples:
  stormloop draft save --topic "ceramic travel mug for cultural tourism" --agents 1,2,3
  stormloop draft list
  stormloop session create --from-draft <key> --start`,
	}

	cmd.AddCommand(newDraftSaveCmd(d))
	cmd.AddCommand(newDraftListCmd(d))
	cmd.AddCommand(newDraftShowCmd(d))
	cmd.AddCommand(newDraftDeleteCmd(d))

	return cmd
}

func newDraftSaveCmd(d *Deps) *cobra.Command {
	var (
		key    string
		topic  string
		agents string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a session draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := d.OpenStore()
			if err != nil {
				return err
			}
			ids, err := parseAgentIDs(agents)
			if err != nil {
				return err
			}
			if key == "" {
				key = uuid.NewString()
			}
			draft := store.Draft{Key: key, Topic: topic, AgentIDs: ids}
			if err := cache.SaveDraft(draft); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved draft %s\n", bold(key))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Draft key (generated when omitted)")
	cmd.Flags().StringVar(&topic, "topic", "", "Session topic")
	cmd.Flags().StringVar(&agents, "agents", "", "Comma-separated agent IDs")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func newDraftListCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := d.OpenStore()
			if err != nil {
				return err
			}
			drafts, err := cache.ListDrafts()
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no drafts saved")
				return nil
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Key", "Topic", "Agents", "Saved"})
			for _, draft := range drafts {
				t.AppendRow(table.Row{
					draft.Key,
					truncate(draft.Topic, 48),
					joinIDs(draft.AgentIDs),
					draft.SavedAt.Format("2006-01-02 15:04"),
				})
			}
			t.Render()
			return nil
		},
	}
}

func newDraftShowCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := d.OpenStore()
			if err != nil {
				return err
			}
			draft, err := cache.GetDraft(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", bold("Key:"), draft.Key)
			fmt.Fprintf(out, "%s %s\n", bold("Topic:"), draft.Topic)
			fmt.Fprintf(out, "%s %s\n", bold("Agents:"), joinIDs(draft.AgentIDs))
			fmt.Fprintf(out, "%s %s\n", bold("Saved:"), draft.SavedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newDraftDeleteCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := d.OpenStore()
			if err != nil {
				return err
			}
			if _, err := cache.GetDraft(args[0]); err != nil {
				return err
			}
			if err := cache.DeleteDraft(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted draft %s\n", args[0])
			return nil
		},
	}
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
