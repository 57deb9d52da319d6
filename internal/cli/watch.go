package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/internal/diagnostics"
	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	"github.com/stormloop-dev/stormloop/pkg/realtime"
)

func newSessionWatchCmd(d *Deps) *cobra.Command {
	var approveAll bool

	cmd := &cobra.Command{
		Use:   "watch [id]",
		Short: "Follow a session live",
		Long: `Join the session's realtime room and print agent activity, stage
progress and summaries as they arrive. Reconnects automatically on
connection loss and resynchronizes state over REST.

With --approve-all each stage is approved and advanced as soon as it
reaches the approval gate, running the session to completion unattended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return d.watchSession(cmd, id, approveAll)
		},
	}

	cmd.Flags().BoolVar(&approveAll, "approve-all", false, "Approve and advance each stage automatically")
	return cmd
}

func (d *Deps) watchSession(cmd *cobra.Command, id int, approveAll bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	session, err := d.API.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		renderSessionDetail(out, session)
		return nil
	}

	metrics := diagnostics.NewMetrics()
	var diagSrv *diagnostics.Server
	if d.Config.Diagnostics.Enabled {
		diagSrv = diagnostics.NewServer(d.Config.Diagnostics.Addr, metrics, d.Log)
		go func() {
			if err := diagSrv.ListenAndServe(); err != nil {
				d.Log.V(1).Info("diagnostics server stopped", "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			diagSrv.Shutdown(shutdownCtx)
		}()
	}

	tracker := realtime.NewTracker(*session, realtime.TrackerOptions{
		Logger: d.Log,
		Sink:   metrics,
	})
	if diagSrv != nil {
		diagSrv.Track(id, tracker)
		defer diagSrv.Untrack(id)
	}

	// refresh wakes the print loop on every inbound frame.
	refresh := make(chan struct{}, 1)
	handler := func(event string, payload json.RawMessage) {
		tracker.HandleFrame(event, payload)
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	fatal := make(chan error, 1)
	opts := d.Config.RealtimeOptions()
	opts.TokenFunc = tokenFunc(d.Config)
	opts.Logger = d.Log
	opts.OnStatus = func(namespace string, status realtime.Status) {
		metrics.SetConnectionStatus(namespace, string(status))
		switch status {
		case realtime.StatusReconnecting:
			metrics.RecordReconnect()
			fmt.Fprintln(out, statusYellow("connection lost, reconnecting..."))
		case realtime.StatusConnected:
			fmt.Fprintln(out, statusGreen("connected"))
		}
	}
	opts.OnFatal = func(namespace string, err error) {
		fatal <- err
	}

	mgr := realtime.NewManager(opts)
	defer mgr.DisconnectAll()

	conn, err := mgr.Connect(ctx, realtime.BrainstormNamespace, handler)
	if err != nil {
		return err
	}
	channel, err := realtime.NewSessionChannel(conn, tracker, id)
	if err != nil {
		return err
	}
	defer channel.Close()

	fmt.Fprintf(out, "watching session %d: %s\n", id, session.Topic)

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(cmd.ErrOrStderr()))
	spin.Suffix = " agents thinking"
	defer spin.Stop()

	cache, cacheErr := d.OpenStore()
	if cacheErr != nil {
		d.Log.V(1).Info("cache unavailable", "error", cacheErr.Error())
	}

	state := &watchState{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-fatal:
			return err
		case <-refresh:
		}

		current := tracker.Session()
		if cache != nil {
			cache.PutSession(current)
		}
		d.printWatchUpdate(cmd, channel, spin, current, state, approveAll)

		if current.Status.IsTerminal() {
			fmt.Fprintf(out, "\nsession %d finished: %s\n", id, colorSessionStatus(current.Status))
			renderSessionDetail(out, &current)
			return nil
		}
	}
}

// watchState remembers what has been printed so each phase's responses and
// summary are shown once.
type watchState struct {
	printedResponses brainstorm.PhaseType
	printedSummary   brainstorm.PhaseType
}

// printWatchUpdate renders the state delta and drives --approve-all.
func (d *Deps) printWatchUpdate(
	cmd *cobra.Command,
	channel *realtime.SessionChannel,
	spin *spinner.Spinner,
	s brainstorm.Session,
	state *watchState,
	approveAll bool,
) {
	out := cmd.OutOrStdout()

	phase := s.Phase(s.CurrentPhase)
	if phase == nil {
		return
	}

	switch phase.Status {
	case brainstorm.PhaseStatusInProgress:
		spin.Suffix = fmt.Sprintf(" %s: %d%% %s",
			phase.Type.DisplayName(), phase.Progress, renderProgressBar(brainstorm.DeriveProgress(s)))
		if !spin.Active() {
			spin.Start()
		}

	case brainstorm.PhaseStatusWaitingApproval:
		spin.Stop()
		if state.printedResponses != phase.Type {
			fmt.Fprintf(out, "\n%s finished, waiting for approval\n", bold(phase.Type.DisplayName()))
			for _, resp := range phase.Responses {
				agent := s.Agent(resp.AgentID)
				name := fmt.Sprintf("agent %d", resp.AgentID)
				if agent != nil {
					name = agent.Name
				}
				if resp.Status == brainstorm.ResponseStatusFailed {
					fmt.Fprintf(out, "  %s %s: %s\n", statusRed("x"), name, resp.Error)
					continue
				}
				fmt.Fprintf(out, "  %s %s:\n%s\n", statusGreen("+"), name,
					indent(wordwrap.String(resp.Content, summaryWidth-4), "    "))
			}
			state.printedResponses = phase.Type
		}
		if approveAll {
			if err := d.API.ApprovePhase(cmd.Context(), s.ID, phase.Type); err != nil {
				fmt.Fprintf(out, "%s %v\n", statusRed("approve failed:"), err)
			}
		}

	case brainstorm.PhaseStatusApproved, brainstorm.PhaseStatusCompleted:
		spin.Stop()
		if phase.Summary != "" && state.printedSummary != phase.Type {
			fmt.Fprintf(out, "\n%s\n%s\n", bold(phase.Type.DisplayName()+" summary"),
				wordwrap.String(phase.Summary, summaryWidth))
			state.printedSummary = phase.Type
		}
		if approveAll {
			if err := channel.Proceed(); err != nil {
				d.Log.V(1).Info("proceed skipped", "error", err.Error())
			}
		}
	}
}

func indent(s, prefix string) string {
	lines := []byte(s)
	var b []byte
	b = append(b, prefix...)
	for _, c := range lines {
		b = append(b, c)
		if c == '\n' {
			b = append(b, prefix...)
		}
	}
	return string(b)
}
