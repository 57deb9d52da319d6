package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/stormloop-dev/stormloop/pkg/api"
)

// NewAgentCmd creates the agent command group.
func NewAgentCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage AI agents",
		Long: `Manage the AI agents available for brainstorm sessions.

Examples:
  stormloop agent list
  stormloop agent list --role "product manager"
  stormloop agent create --name critic --role critic --model claude-3
  stormloop agent test 3 --prompt "Suggest one improvement"`,
	}

	cmd.AddCommand(newAgentListCmd(d))
	cmd.AddCommand(newAgentGetCmd(d))
	cmd.AddCommand(newAgentCreateCmd(d))
	cmd.AddCommand(newAgentUpdateCmd(d))
	cmd.AddCommand(newAgentDeleteCmd(d))
	cmd.AddCommand(newAgentDuplicateCmd(d))
	cmd.AddCommand(newAgentTestCmd(d))
	cmd.AddCommand(newAgentModelsCmd(d))

	return cmd
}

func newAgentListCmd(d *Deps) *cobra.Command {
	params := api.ListAgentsParams{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := d.API.ListAgents(cmd.Context(), params)
			if err != nil {
				return err
			}
			renderAgentTable(cmd.OutOrStdout(), page.Items)
			if page.Pagination.TotalPages > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d agents)\n",
					page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "Page size")
	cmd.Flags().StringVar(&params.Search, "search", "", "Filter by name")
	cmd.Flags().StringVar(&params.Role, "role", "", "Filter by role")

	return cmd
}

func newAgentGetCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}
			agent, err := d.API.GetAgent(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", bold("Agent"), bold(strconv.Itoa(agent.ID)))
			fmt.Fprintf(out, "Name:   %s\n", agent.Name)
			fmt.Fprintf(out, "Role:   %s\n", agent.Role)
			fmt.Fprintf(out, "Model:  %s (temp %.1f, max %d tokens)\n",
				agent.ModelType, agent.ModelConfig.Temperature, agent.ModelConfig.MaxTokens)
			fmt.Fprintf(out, "Prompt: %s\n", agent.SystemPrompt)
			return nil
		},
	}
}

func agentInputFlags(cmd *cobra.Command, input *api.AgentInput) {
	cmd.Flags().StringVar(&input.Name, "name", "", "Agent name")
	cmd.Flags().StringVar(&input.Role, "role", "", "Agent role")
	cmd.Flags().StringVar(&input.SystemPrompt, "prompt", "", "System prompt")
	cmd.Flags().StringVar(&input.ModelType, "model", "", "Model id, see 'agent models'")
	cmd.Flags().Float64Var(&input.ModelConfig.Temperature, "temperature", 0.7, "Sampling temperature")
	cmd.Flags().IntVar(&input.ModelConfig.MaxTokens, "max-tokens", 2048, "Max output tokens")
}

func newAgentCreateCmd(d *Deps) *cobra.Command {
	input := api.AgentInput{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := d.API.CreateAgent(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created agent %d (%s)\n", agent.ID, agent.Name)
			return nil
		},
	}

	agentInputFlags(cmd, &input)
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("model")

	return cmd
}

func newAgentUpdateCmd(d *Deps) *cobra.Command {
	input := api.AgentInput{}

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}
			agent, err := d.API.UpdateAgent(cmd.Context(), id, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated agent %d (%s)\n", agent.ID, agent.Name)
			return nil
		},
	}

	agentInputFlags(cmd, &input)
	return cmd
}

func newAgentDeleteCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}
			if err := d.API.DeleteAgent(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted agent %d\n", id)
			return nil
		},
	}
}

func newAgentDuplicateCmd(d *Deps) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "duplicate [id]",
		Short: "Clone an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}
			agent, err := d.API.DuplicateAgent(cmd.Context(), id, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created agent %d (%s)\n", agent.ID, agent.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name for the copy")
	return cmd
}

func newAgentTestCmd(d *Deps) *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "test [id]",
		Short: "Send a test prompt to an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid agent id %q", args[0])
			}
			result, err := d.API.TestAgent(cmd.Context(), id, prompt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Success {
				fmt.Fprintf(out, "%s %s\n", statusRed("test failed:"), result.Error)
				return nil
			}
			fmt.Fprintf(out, "%s (%dms)\n%s\n", statusGreen("test passed"),
				result.ProcessingTime, result.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Test prompt")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

func newAgentModelsCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available AI models",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := d.API.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Name", "Provider", "Max Tokens"})
			for _, m := range models {
				t.AppendRow(table.Row{m.ID, m.Name, m.Provider, m.MaxTokens})
			}
			t.Render()
			return nil
		},
	}
}
