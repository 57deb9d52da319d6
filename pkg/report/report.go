// Package report assembles the final report of a completed brainstorm
// session and renders it for export. HTML and JSON are rendered locally;
// binary formats (pdf, docx) are produced server-side and only validated
// here.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// Format is an export file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

var formatExtensions = map[Format]string{
	FormatPDF:  "pdf",
	FormatDocx: "docx",
	FormatHTML: "html",
	FormatJSON: "json",
}

// TemplateName selects a layout from the template catalog.
type TemplateName string

const (
	TemplateDefault  TemplateName = "default"
	TemplateMinimal  TemplateName = "minimal"
	TemplateDetailed TemplateName = "detailed"
)

// ExportOptions selects the output format and template of one export.
type ExportOptions struct {
	Format   Format
	Template TemplateName
	FileName string
}

// Validate checks the format and template against the known catalogs. An
// empty template defaults to "default".
func (o *ExportOptions) Validate() error {
	if _, ok := formatExtensions[o.Format]; !ok {
		return apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("unsupported export format %q", o.Format), nil)
	}
	if o.Template == "" {
		o.Template = TemplateDefault
	}
	if _, err := TemplateByName(o.Template); err != nil {
		return err
	}
	return nil
}

// DefaultFileName builds the file name used when the caller and server give
// none.
func (o ExportOptions) DefaultFileName(sessionID int) string {
	if o.FileName != "" {
		return o.FileName
	}
	return fmt.Sprintf("brainstorm-report-%d.%s", sessionID, formatExtensions[o.Format])
}

// ResponseEntry is one agent's contribution in a report section.
type ResponseEntry struct {
	AgentName      string        `json:"agentName"`
	AgentRole      string        `json:"agentRole"`
	Content        string        `json:"content"`
	Failed         bool          `json:"failed"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// PhaseSection is one completed phase in the report.
type PhaseSection struct {
	Phase     brainstorm.PhaseType `json:"phase"`
	Name      string               `json:"name"`
	Summary   string               `json:"summary"`
	Responses []ResponseEntry      `json:"responses"`
}

// FinalReport is the assembled deliverable of a completed session.
type FinalReport struct {
	SessionID        int            `json:"sessionId"`
	Topic            string         `json:"topic"`
	Title            string         `json:"title,omitempty"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	ExecutiveSummary string         `json:"executiveSummary"`
	// KeyPoints and Recommendations are distilled server-side; local
	// assembly leaves them empty.
	KeyPoints        []string       `json:"keyPoints,omitempty"`
	Recommendations  []string       `json:"recommendations,omitempty"`
	Sections         []PhaseSection `json:"sections"`
}

// Assemble builds the final report from a completed session's phases. Only
// COMPLETED sessions produce a report.
func Assemble(s brainstorm.Session) (*FinalReport, error) {
	if s.Status != brainstorm.SessionStatusCompleted {
		return nil, apperrors.New(apperrors.ErrCodeExport,
			fmt.Sprintf("session %d is %s, report requires a completed session", s.ID, s.Status), nil)
	}

	fr := &FinalReport{
		SessionID:   s.ID,
		Topic:       s.Topic,
		Title:       s.Title,
		GeneratedAt: time.Now(),
	}

	var summaries []string
	for _, pt := range brainstorm.PhaseOrder {
		phase := s.Phase(pt)
		if phase == nil || phase.Status != brainstorm.PhaseStatusCompleted {
			continue
		}
		section := PhaseSection{
			Phase:   pt,
			Name:    pt.DisplayName(),
			Summary: phase.Summary,
		}
		for _, resp := range phase.Responses {
			entry := ResponseEntry{
				Content:        resp.Content,
				Failed:         resp.Status == brainstorm.ResponseStatusFailed,
				ProcessingTime: resp.ProcessingTime,
			}
			if resp.Status == brainstorm.ResponseStatusFailed {
				entry.Content = resp.Error
			}
			if agent := s.Agent(resp.AgentID); agent != nil {
				entry.AgentName = agent.Name
				entry.AgentRole = agent.Role
			}
			section.Responses = append(section.Responses, entry)
		}
		fr.Sections = append(fr.Sections, section)
		if phase.Summary != "" {
			summaries = append(summaries, phase.Summary)
		}
	}

	if len(fr.Sections) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeExport,
			fmt.Sprintf("session %d has no completed phases", s.ID), nil)
	}
	fr.ExecutiveSummary = strings.Join(summaries, "\n\n")
	return fr, nil
}
