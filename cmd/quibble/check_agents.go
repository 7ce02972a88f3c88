package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mfelix/quibble/internal/agent"
	"github.com/mfelix/quibble/internal/config"
)

func checkAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-agents",
		Short: "Check which agent CLIs are installed",
		Long: `Check that the configured agent commands are on PATH.

A review session needs both codex and claude installed; this reports
each one without starting a session.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGlobal()
			if err != nil {
				return err
			}

			// Re-register with the configured commands so the PATH check
			// tests what a session would actually run.
			agent.Register(agent.NewCodexAgent(cfg.CodexCmd))
			agent.Register(agent.NewClaudeAgent(cfg.ClaudeCmd))

			commands := map[string]string{
				"codex":  cfg.CodexCmd,
				"claude": cfg.ClaudeCmd,
			}
			names := make([]string, 0, len(commands))
			for name := range commands {
				names = append(names, name)
			}
			sort.Strings(names)

			missing := 0
			for _, name := range names {
				if agent.IsInstalled(name) {
					fmt.Printf("%-8s OK      (%s)\n", name, commands[name])
				} else {
					fmt.Printf("%-8s MISSING (%s not found on PATH)\n", name, commands[name])
					missing++
				}
			}
			if missing > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
