package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

const htmlDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Report.Topic}} - Brainstorm Report</title>
<style>
{{.Styles}}
</style>
</head>
<body>
<div class="report">
<header>
<h1>{{.Report.Topic}}</h1>
<p><strong>Generated:</strong> {{.Report.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
<p><strong>Session:</strong> {{.Report.SessionID}}</p>
</header>
<section class="section">
<h2>Executive Summary</h2>
<div class="summary"><p>{{.Report.ExecutiveSummary}}</p></div>
</section>
{{if .Report.KeyPoints}}
<section class="section">
<h2>Key Points</h2>
<ul>{{range .Report.KeyPoints}}<li>{{.}}</li>{{end}}</ul>
</section>
{{end}}
{{if .Report.Recommendations}}
<section class="section">
<h2>Recommendations</h2>
<ul>{{range .Report.Recommendations}}<li>{{.}}</li>{{end}}</ul>
</section>
{{end}}
{{range .Report.Sections}}
<section class="section">
<h2>{{.Name}}</h2>
<p>{{.Summary}}</p>
{{if $.IncludeResponses}}
{{range .Responses}}
<div class="response">
<h3>{{.AgentName}} ({{.AgentRole}})</h3>
{{if .Failed}}<p><em>Agent failed: {{.Content}}</em></p>{{else}}<p>{{.Content}}</p>{{end}}
{{if $.IncludeTimings}}<p><small>Processing time: {{.ProcessingTime}}</small></p>{{end}}
</div>
{{end}}
{{end}}
</section>
{{end}}
<footer>
<p>Generated by the AI brainstorm platform</p>
</footer>
</div>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlDocument))

// Render produces the report in the requested format. Only html and json are
// rendered locally; pdf and docx come from the export endpoint.
func Render(fr *FinalReport, opts ExportOptions) ([]byte, string, error) {
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}
	switch opts.Format {
	case FormatHTML:
		tmpl, err := TemplateByName(opts.Template)
		if err != nil {
			return nil, "", err
		}
		out, err := RenderHTML(fr, tmpl)
		if err != nil {
			return nil, "", err
		}
		return out, "text/html; charset=utf-8", nil
	case FormatJSON:
		out, err := json.MarshalIndent(fr, "", "  ")
		if err != nil {
			return nil, "", apperrors.New(apperrors.ErrCodeExport, "failed to marshal report", err)
		}
		return out, "application/json", nil
	default:
		return nil, "", apperrors.New(apperrors.ErrCodeExport,
			fmt.Sprintf("format %q is rendered server-side", opts.Format), nil)
	}
}

// RenderHTML renders the report as a standalone HTML document using the
// given template. The minimal template drops individual responses; the
// detailed template adds per-response timing.
func RenderHTML(fr *FinalReport, tmpl *ExportTemplate) ([]byte, error) {
	data := struct {
		Report *FinalReport
		// Styles is trusted catalog CSS; without the CSS type the
		// contextual escaper would reject it inside <style>.
		Styles           template.CSS
		IncludeResponses bool
		IncludeTimings   bool
	}{
		Report:           fr,
		Styles:           template.CSS(tmpl.Styles),
		IncludeResponses: tmpl.Name != TemplateMinimal,
		IncludeTimings:   tmpl.Name == TemplateDetailed,
	}
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, data); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeExport, "failed to render report", err)
	}
	return buf.Bytes(), nil
}

// RenderText renders the report as plain text, used for terminal display.
func RenderText(fr *FinalReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - Brainstorm Report\n\n", fr.Topic)
	fmt.Fprintf(&b, "Generated: %s\n", fr.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Session:   %d\n\n", fr.SessionID)
	b.WriteString("Executive Summary\n")
	b.WriteString("=================\n")
	b.WriteString(fr.ExecutiveSummary)
	b.WriteString("\n")
	if len(fr.KeyPoints) > 0 {
		b.WriteString("\nKey Points\n==========\n")
		for _, p := range fr.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if len(fr.Recommendations) > 0 {
		b.WriteString("\nRecommendations\n===============\n")
		for _, r := range fr.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	for _, section := range fr.Sections {
		fmt.Fprintf(&b, "\n%s\n%s\n", section.Name, strings.Repeat("=", len(section.Name)))
		b.WriteString(section.Summary)
		b.WriteString("\n")
		for _, resp := range section.Responses {
			fmt.Fprintf(&b, "\n[%s, %s]\n", resp.AgentName, resp.AgentRole)
			if resp.Failed {
				fmt.Fprintf(&b, "agent failed: %s\n", resp.Content)
				continue
			}
			b.WriteString(resp.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}
