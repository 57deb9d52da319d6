package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/pkg/realtime"
)

// withSessionChannel opens a short-lived gateway connection for one command:
// the session is fetched over REST to seed the tracker so the reducer's
// guards see the current state, the command runs, and the room is left again.
func (d *Deps) withSessionChannel(cmd *cobra.Command, id int, fn func(*realtime.SessionChannel) error) error {
	session, err := d.API.GetSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	tracker := realtime.NewTracker(*session, realtime.TrackerOptions{Logger: d.Log})

	opts := d.Config.RealtimeOptions()
	opts.TokenFunc = tokenFunc(d.Config)
	opts.Logger = d.Log

	mgr := realtime.NewManager(opts)
	defer mgr.DisconnectAll()

	conn, err := mgr.Connect(cmd.Context(), realtime.BrainstormNamespace, func(event string, payload json.RawMessage) {
		tracker.HandleFrame(event, payload)
	})
	if err != nil {
		return err
	}
	channel, err := realtime.NewSessionChannel(conn, tracker, id)
	if err != nil {
		return err
	}
	defer channel.Close()

	return fn(channel)
}

func newSessionProceedCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "proceed [id]",
		Short: "Advance an approved session to the next phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			if err := d.withSessionChannel(cmd, id, func(ch *realtime.SessionChannel) error {
				return ch.Proceed()
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "proceeding: session %d\n", id)
			return nil
		},
	}
}

func newSessionRestartCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [id]",
		Short: "Re-run the current phase from scratch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			if err := d.withSessionChannel(cmd, id, func(ch *realtime.SessionChannel) error {
				return ch.RestartStage()
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restarting current phase: session %d\n", id)
			return nil
		},
	}
}
