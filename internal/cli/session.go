package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/pkg/api"
	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// NewSessionCmd creates the session command group.
func NewSessionCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage brainstorm sessions",
		Long: `Create, control and follow brainstorm sessions.

Examples:
  stormloop session create --topic "ceramic travel mug for cultural tourism" --agents 1,2,3
  stormloop session start 42
  stormloop session watch 42
  stormloop session approve 42 IDEA_GENERATION`,
	}

	cmd.AddCommand(newSessionListCmd(d))
	cmd.AddCommand(newSessionGetCmd(d))
	cmd.AddCommand(newSessionCreateCmd(d))
	cmd.AddCommand(newSessionDuplicateCmd(d))
	cmd.AddCommand(newSessionDeleteCmd(d))
	cmd.AddCommand(newSessionStartCmd(d))
	cmd.AddCommand(newSessionSimpleCmd(d, "pause", "paused", "Pause a running session", d.pause))
	cmd.AddCommand(newSessionSimpleCmd(d, "resume", "resumed", "Resume a paused session", d.resume))
	cmd.AddCommand(newSessionSimpleCmd(d, "cancel", "cancelled", "Cancel a session", d.cancel))
	cmd.AddCommand(newSessionPhaseCmd(d, "approve", "Approve a phase waiting for review", d.approve))
	cmd.AddCommand(newSessionRejectCmd(d))
	cmd.AddCommand(newSessionPhaseCmd(d, "retry", "Re-run a failed or rejected phase", d.retry))
	cmd.AddCommand(newSessionPhaseCmd(d, "submit", "Submit a phase for approval", d.submit))
	cmd.AddCommand(newSessionProceedCmd(d))
	cmd.AddCommand(newSessionRestartCmd(d))
	cmd.AddCommand(newSessionWatchCmd(d))

	return cmd
}

func parseSessionID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}

func parsePhase(arg string) (brainstorm.PhaseType, error) {
	pt := brainstorm.PhaseType(strings.ToUpper(arg))
	if brainstorm.PhaseIndex(pt) < 0 {
		return "", fmt.Errorf("unknown phase %q (one of %s)", arg, phaseNames())
	}
	return pt, nil
}

func phaseNames() string {
	names := make([]string, len(brainstorm.PhaseOrder))
	for i, pt := range brainstorm.PhaseOrder {
		names[i] = string(pt)
	}
	return strings.Join(names, ", ")
}

func parseAgentIDs(csv string) ([]int, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid agent id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// sessionListFilter keys the persisted list view settings in the local cache.
const sessionListFilter = "session-list"

func newSessionListCmd(d *Deps) *cobra.Command {
	params := api.ListSessionsParams{}
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Status = brainstorm.SessionStatus(strings.ToUpper(status))
			if cache, err := d.OpenStore(); err == nil {
				if !cmd.Flags().Changed("status") && !cmd.Flags().Changed("limit") {
					var saved api.ListSessionsParams
					if err := cache.LoadFilter(sessionListFilter, &saved); err == nil {
						params.Status = saved.Status
						params.Limit = saved.Limit
					}
				} else if err := cache.SaveFilter(sessionListFilter, params); err != nil {
					d.Log.V(1).Info("failed to save list filter", "reason", err.Error())
				}
			}
			page, err := d.API.ListSessions(cmd.Context(), params)
			if err != nil {
				return err
			}
			renderSessionTable(cmd.OutOrStdout(), page.Items)
			if page.Pagination.TotalPages > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d sessions)\n",
					page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "Page size")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")

	return cmd
}

func newSessionGetCmd(d *Deps) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}

			// Serve from the local cache unless --fresh or a miss.
			if !fresh {
				if cache, err := d.OpenStore(); err == nil {
					if session, err := cache.GetSession(id); err == nil {
						renderSessionDetail(cmd.OutOrStdout(), session)
						return nil
					}
				}
			}

			session, err := d.API.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cache, err := d.OpenStore(); err == nil {
				if err := cache.PutSession(*session); err != nil {
					d.Log.V(1).Info("failed to cache session", "error", err.Error())
				}
			}
			renderSessionDetail(cmd.OutOrStdout(), session)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Bypass the local cache")
	return cmd
}

func newSessionCreateCmd(d *Deps) *cobra.Command {
	var (
		topic    string
		title    string
		agents   string
		draftKey string
		start    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			agentIDs, err := parseAgentIDs(agents)
			if err != nil {
				return err
			}

			// --from-draft fills whatever the flags left empty.
			if draftKey != "" {
				cache, err := d.OpenStore()
				if err != nil {
					return err
				}
				draft, err := cache.GetDraft(draftKey)
				if err != nil {
					return err
				}
				if topic == "" {
					topic = draft.Topic
				}
				if len(agentIDs) == 0 {
					agentIDs = draft.AgentIDs
				}
			}

			session, err := d.API.CreateSession(cmd.Context(), api.CreateSessionRequest{
				Title:    title,
				Topic:    topic,
				AgentIDs: agentIDs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created session %d\n", session.ID)

			if draftKey != "" {
				if cache, err := d.OpenStore(); err == nil {
					cache.DeleteDraft(draftKey)
				}
			}

			if start {
				if err := d.API.StartSession(cmd.Context(), session.ID, api.StartSessionRequest{
					Topic:    topic,
					AgentIDs: agentIDs,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started session %d\n", session.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Brainstorm topic (10-200 characters)")
	cmd.Flags().StringVar(&title, "title", "", "Optional session title")
	cmd.Flags().StringVar(&agents, "agents", "", "Comma-separated agent ids (2-6 agents)")
	cmd.Flags().StringVar(&draftKey, "from-draft", "", "Create from a saved draft")
	cmd.Flags().BoolVar(&start, "start", false, "Start immediately after creating")

	return cmd
}

func newSessionDuplicateCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate [id]",
		Short: "Clone a session's topic and roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			session, err := d.API.DuplicateSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created session %d\n", session.ID)
			return nil
		},
	}
}

func newSessionDeleteCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			if err := d.API.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			if cache, err := d.OpenStore(); err == nil {
				cache.DeleteSession(id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted session %d\n", id)
			return nil
		},
	}
}

func newSessionStartCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [id]",
		Short: "Start a created session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			session, err := d.API.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			agentIDs := make([]int, len(session.Agents))
			for i, a := range session.Agents {
				agentIDs[i] = a.AgentID
			}
			if err := d.API.StartSession(cmd.Context(), id, api.StartSessionRequest{
				Topic:    session.Topic,
				AgentIDs: agentIDs,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started session %d\n", id)
			return nil
		},
	}
	return cmd
}

type sessionAction func(cmd *cobra.Command, id int) error

func (d *Deps) pause(cmd *cobra.Command, id int) error {
	return d.API.PauseSession(cmd.Context(), id)
}

func (d *Deps) resume(cmd *cobra.Command, id int) error {
	return d.API.ResumeSession(cmd.Context(), id)
}

func (d *Deps) cancel(cmd *cobra.Command, id int) error {
	return d.API.CancelSession(cmd.Context(), id)
}

func newSessionSimpleCmd(d *Deps, verb, past, short string, action sessionAction) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			if err := action(cmd, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s session %d\n", past, id)
			return nil
		},
	}
}

type phaseAction func(cmd *cobra.Command, id int, phase brainstorm.PhaseType) error

func (d *Deps) approve(cmd *cobra.Command, id int, phase brainstorm.PhaseType) error {
	return d.API.ApprovePhase(cmd.Context(), id, phase)
}

func (d *Deps) retry(cmd *cobra.Command, id int, phase brainstorm.PhaseType) error {
	return d.API.RetryPhase(cmd.Context(), id, phase)
}

func (d *Deps) submit(cmd *cobra.Command, id int, phase brainstorm.PhaseType) error {
	return d.API.SubmitPhaseForApproval(cmd.Context(), id, phase)
}

func newSessionPhaseCmd(d *Deps, verb, short string, action phaseAction) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [id] [phase]",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			phase, err := parsePhase(args[1])
			if err != nil {
				return err
			}
			if err := action(cmd, id, phase); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: session %d phase %s\n", verb, id, phase)
			return nil
		},
	}
}

func newSessionRejectCmd(d *Deps) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject [id] [phase]",
		Short: "Reject a phase with a reason",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			phase, err := parsePhase(args[1])
			if err != nil {
				return err
			}
			if reason == "" {
				return apperrors.New(apperrors.ErrCodeValidation, "a rejection reason is required", nil)
			}
			if err := d.API.RejectPhase(cmd.Context(), id, phase, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected: session %d phase %s\n", id, phase)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the phase output is rejected")
	return cmd
}
