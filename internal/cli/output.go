package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/reflow/wordwrap"

	"github.com/stormloop-dev/stormloop/pkg/api"
	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
)

const summaryWidth = 78

var (
	statusGreen  = color.New(color.FgGreen).SprintFunc()
	statusYellow = color.New(color.FgYellow).SprintFunc()
	statusRed    = color.New(color.FgRed).SprintFunc()
	statusCyan   = color.New(color.FgCyan).SprintFunc()
	bold         = color.New(color.Bold).SprintFunc()
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

func colorSessionStatus(s brainstorm.SessionStatus) string {
	switch s {
	case brainstorm.SessionStatusInProgress:
		return statusCyan(string(s))
	case brainstorm.SessionStatusCompleted:
		return statusGreen(string(s))
	case brainstorm.SessionStatusPaused:
		return statusYellow(string(s))
	case brainstorm.SessionStatusCancelled:
		return statusRed(string(s))
	default:
		return string(s)
	}
}

func colorPhaseStatus(s brainstorm.PhaseStatus) string {
	switch s {
	case brainstorm.PhaseStatusInProgress:
		return statusCyan(string(s))
	case brainstorm.PhaseStatusWaitingApproval:
		return statusYellow(string(s))
	case brainstorm.PhaseStatusApproved, brainstorm.PhaseStatusCompleted:
		return statusGreen(string(s))
	case brainstorm.PhaseStatusRejected:
		return statusRed(string(s))
	default:
		return string(s)
	}
}

func colorAgentStatus(s brainstorm.AgentRuntimeStatus) string {
	switch s {
	case brainstorm.AgentStatusThinking:
		return statusCyan(string(s))
	case brainstorm.AgentStatusCompleted:
		return statusGreen(string(s))
	case brainstorm.AgentStatusError:
		return statusRed(string(s))
	default:
		return string(s)
	}
}

func renderAgentTable(out io.Writer, agents []api.Agent) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Name", "Role", "Model", "Temp"})
	for _, a := range agents {
		t.AppendRow(table.Row{
			a.ID, a.Name, a.Role, a.ModelType,
			strconv.FormatFloat(a.ModelConfig.Temperature, 'f', 1, 64),
		})
	}
	t.Render()
}

func renderSessionTable(out io.Writer, sessions []brainstorm.Session) {
	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Topic", "Status", "Current Phase", "Updated"})
	for _, s := range sessions {
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			s.ID, truncate(s.Topic, 48), colorSessionStatus(s.Status),
			string(s.CurrentPhase), updated,
		})
	}
	t.Render()
}

func renderSessionDetail(out io.Writer, s *brainstorm.Session) {
	fmt.Fprintf(out, "%s %s\n", bold("Session"), bold(strconv.Itoa(s.ID)))
	fmt.Fprintf(out, "Topic:  %s\n", s.Topic)
	fmt.Fprintf(out, "Status: %s\n", colorSessionStatus(s.Status))
	if s.LastError != "" {
		fmt.Fprintf(out, "Error:  %s\n", statusRed(s.LastError))
	}

	if len(s.Agents) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Agents"))
		t := newTable(out)
		t.AppendHeader(table.Row{"ID", "Name", "Role", "Status", "Progress"})
		for _, a := range s.Agents {
			t.AppendRow(table.Row{
				a.AgentID, a.Name, a.Role, colorAgentStatus(a.Status),
				fmt.Sprintf("%d%%", a.Progress),
			})
		}
		t.Render()
	}

	if len(s.Phases) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Phases"))
		t := newTable(out)
		t.AppendHeader(table.Row{"Phase", "Status", "Progress", "Responses"})
		for _, p := range s.Phases {
			marker := " "
			if p.Type == s.CurrentPhase {
				marker = ">"
			}
			t.AppendRow(table.Row{
				marker + " " + p.Type.DisplayName(), colorPhaseStatus(p.Status),
				fmt.Sprintf("%d%%", p.Progress), len(p.Responses),
			})
		}
		t.Render()

		for _, p := range s.Phases {
			if p.Summary == "" {
				continue
			}
			fmt.Fprintf(out, "\n%s\n%s\n", bold(p.Type.DisplayName()+" summary"),
				wordwrap.String(p.Summary, summaryWidth))
		}
	}
}

func renderProgressBar(p brainstorm.Progress) string {
	var b strings.Builder
	for i, name := range p.Names {
		switch {
		case p.Completed[i]:
			b.WriteString(statusGreen("[" + name + "]"))
		case i == p.CurrentIndex:
			b.WriteString(statusCyan("[" + name + "]"))
		default:
			b.WriteString("[" + name + "]")
		}
		if i < len(p.Names)-1 {
			b.WriteString(" -> ")
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
