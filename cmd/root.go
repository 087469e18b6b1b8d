package cmd

import (
	"github.com/joho/godotenv"
	"github.com/siga-research/siga/internal/researchcmd"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	env := &researchcmd.Env{}
	var configPath string

	cmd := &cobra.Command{
		Use:   "siga",
		Short: "Company research with interchangeable LLM providers",
		Long: `Siga extracts subsidiaries, key financial figures and recent news for companies
using OpenAI, Google AI, Anthropic or a local Ollama server.

Settings come from an optional siga.yaml, a .env file and the environment
(OPENAI_API_KEY, GOOGLE_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			env.Out = cmd.OutOrStdout()
			return env.Init(configPath)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./siga.yaml or ./config/siga.yaml)")

	cmd.AddCommand(researchcmd.NewResearchCmd(env))
	cmd.AddCommand(researchcmd.NewModelsCmd(env))
	cmd.AddCommand(researchcmd.NewPromptsCmd(env))
	cmd.AddCommand(researchcmd.NewRunsCmd(env))
	cmd.AddCommand(researchcmd.NewReportCmd(env))

	return cmd
}
