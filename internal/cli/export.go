package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/pkg/report"
)

// NewExportCmd creates the export command. HTML and JSON reports render
// locally from the final report; PDF and DOCX are produced by the platform
// and downloaded as-is.
func NewExportCmd(d *Deps) *cobra.Command {
	var (
		format   string
		template string
		output   string
		preview  bool
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export the final report of a completed session",
		Long: `Export the final report of a completed brainstorm session.

Examples:
  stormloop export 42
  stormloop export 42 --format pdf --template detailed
  stormloop export 42 --format json --output report.json
  stormloop export 42 --preview`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			opts := report.ExportOptions{
				Format:   report.Format(format),
				Template: report.TemplateName(template),
				FileName: output,
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			if preview {
				fr, err := d.finalReport(cmd, id)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), report.RenderText(fr))
				return nil
			}

			var (
				data []byte
				name string
			)
			switch opts.Format {
			case report.FormatHTML, report.FormatJSON:
				fr, err := d.finalReport(cmd, id)
				if err != nil {
					return err
				}
				data, _, err = report.Render(fr, opts)
				if err != nil {
					return err
				}
				name = opts.DefaultFileName(id)
			default:
				artifact, err := d.API.ExportReport(cmd.Context(), id, opts)
				if err != nil {
					return err
				}
				data = artifact.Data
				name = artifact.FileName
			}

			if output != "" {
				name = output
			}
			if err := os.WriteFile(name, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", bold(name), len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "html", "Report format: pdf, docx, html or json")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Report template: default, minimal or detailed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to a name derived from the session)")
	cmd.Flags().BoolVar(&preview, "preview", false, "Print a plain-text preview instead of writing a file")

	cmd.AddCommand(newExportTemplatesCmd())

	return cmd
}

// finalReport prefers the server-side report and falls back to assembling
// one from the session state when the endpoint is unavailable.
func (d *Deps) finalReport(cmd *cobra.Command, id int) (*report.FinalReport, error) {
	fr, err := d.API.GetFinalReport(cmd.Context(), id)
	if err == nil {
		return fr, nil
	}
	d.Log.V(1).Info("report endpoint failed, assembling locally", "sessionID", id, "reason", err.Error())
	session, sErr := d.API.GetSession(cmd.Context(), id)
	if sErr != nil {
		return nil, err
	}
	return report.Assemble(*session)
}

func newExportTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List available report templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := report.Templates()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Layout", "Description"})
			for _, tmpl := range templates {
				t.AppendRow(table.Row{string(tmpl.Name), tmpl.Layout, tmpl.Description})
			}
			t.Render()
			return nil
		},
	}
}
