package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/scriptdesk/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Scriptdesk Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.Provider = prompt(scanner, "LLM provider (openai|gemini)", cfg.LLM.Provider)
		if cfg.LLM.Provider == "openai" {
			cfg.LLM.BaseURL = prompt(scanner, "LLM base URL", cfg.LLM.BaseURL)
		}
		cfg.LLM.APIKey = prompt(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = prompt(scanner, "LLM model name", cfg.LLM.Model)

		cfg.Language = prompt(scanner, "Script language", cfg.Language)
		cfg.Region = prompt(scanner, "Agenda region", cfg.Region)

		cfg.Speech.APIKey = prompt(scanner, "ElevenLabs API key (optional)", cfg.Speech.APIKey)
		if cfg.Speech.APIKey != "" {
			cfg.Speech.DefaultVoice.Name = prompt(scanner, "Default voice name", cfg.Speech.DefaultVoice.Name)
			cfg.Speech.DefaultVoice.ID = prompt(scanner, "Default voice ID", cfg.Speech.DefaultVoice.ID)
		}

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		cfg.WhatsApp.Enabled = promptBool(scanner, "Enable WhatsApp", cfg.WhatsApp.Enabled)

		fmt.Println()
		fmt.Println("Channels are namespaced IDs such as telegram:-100123 or whatsapp:group:Newsroom.")
		cfg.Channels.Intake = prompt(scanner, "Intake channel", cfg.Channels.Intake)
		cfg.Channels.ScriptDistribution = prompt(scanner, "Script distribution channel", cfg.Channels.ScriptDistribution)
		cfg.Channels.VisualDistribution = prompt(scanner, "Visual distribution channel (optional)", cfg.Channels.VisualDistribution)
		cfg.Editorial.IncludeVisuals = cfg.Channels.VisualDistribution != "" &&
			promptBool(scanner, "Send visuals briefs with editorial scripts", cfg.Editorial.IncludeVisuals)

		maxConcurrent := prompt(scanner, "Max concurrent runs", strconv.Itoa(cfg.MaxConcurrent))
		if n, err := strconv.Atoi(maxConcurrent); err == nil {
			cfg.MaxConcurrent = n
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func promptBool(scanner *bufio.Scanner, label string, defaultVal bool) bool {
	def := "n"
	if defaultVal {
		def = "y"
	}
	switch strings.ToLower(prompt(scanner, label+" (y/n)", def)) {
	case "y", "yes", "true":
		return true
	case "n", "no", "false":
		return false
	}
	return defaultVal
}
