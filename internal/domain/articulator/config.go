package articulator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"values-server/services/articulator-api/internal/domain/llm"
)

// Function names the dispatch loop understands.
const (
	FunctionGuessValuesCard  = "guess_values_card"
	FunctionShowValuesCard   = "show_values_card"
	FunctionSubmitValuesCard = "submit_values_card"
	FunctionFormatCard       = "format_card"
)

// Placeholders recognized in prompt and summary templates.
const (
	PlaceholderTask       = "{{TASK}}"
	PlaceholderSubmitStep = "{{SUBMIT_STEP}}"
	PlaceholderTimeframe  = "{{TIMEFRAME}}"
	PlaceholderName       = "{{NAME}}"
)

// PromptSpec couples a system prompt with the functions offered alongside it.
type PromptSpec struct {
	Prompt    string                   `yaml:"prompt" json:"prompt"`
	Functions []llm.FunctionDefinition `yaml:"functions" json:"functions"`
}

// Prompts holds the two prompt sets the articulator uses: the main
// conversational prompt and the card-evaluation prompt.
type Prompts struct {
	Main           PromptSpec `yaml:"main" json:"main"`
	ShowValuesCard PromptSpec `yaml:"show_values_card" json:"show_values_card"`
}

// Config is one named articulator prompt set.
type Config struct {
	Name      string            `yaml:"name" json:"name"`
	Model     string            `yaml:"model" json:"model"`
	Prompts   Prompts           `yaml:"prompts" json:"prompts"`
	Summaries map[string]string `yaml:"summaries" json:"summaries"`
}

// Settings substitutes conversation-specific values into prompt templates.
type Settings struct {
	PromptTask       string
	PromptSubmitStep string
	Timeframe        string
	Name             string
}

// Metadata identifies the prompt set a chat was run against, for audit.
type Metadata struct {
	Name        string
	Model       string
	ContentHash string
}

// Metadata computes the audit metadata for this config. The content hash
// covers the full prompt set so prompt edits are distinguishable even under
// the same version name.
func (c *Config) Metadata() Metadata {
	payload, _ := json.Marshal(c.Prompts)
	sum := sha256.Sum256(payload)
	return Metadata{
		Name:        c.Name,
		Model:       c.Model,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// MainPrompt renders the main system prompt with settings substituted.
func (c *Config) MainPrompt(settings Settings) string {
	return substitute(c.Prompts.Main.Prompt, settings)
}

// Summarize renders the summary template for key with the given variables.
// Variables are substituted as {{name}} tokens. Unknown keys yield an error
// so a missing template is caught rather than silently blanked.
func (c *Config) Summarize(key string, vars map[string]string) (string, error) {
	tmpl, ok := c.Summaries[key]
	if !ok {
		return "", fmt.Errorf("no summary template for %q", key)
	}
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out, nil
}

func substitute(prompt string, settings Settings) string {
	r := strings.NewReplacer(
		PlaceholderTask, settings.PromptTask,
		PlaceholderSubmitStep, settings.PromptSubmitStep,
		PlaceholderTimeframe, settings.Timeframe,
		PlaceholderName, settings.Name,
	)
	return r.Replace(prompt)
}

// LoadConfigs reads every *.yaml file in dir into a config set keyed by name.
// The default config is always present and may be overridden by a file with
// the same name.
func LoadConfigs(dir string) (map[string]*Config, error) {
	configs := map[string]*Config{}
	def := DefaultConfig()
	configs[def.Name] = def

	if dir == "" {
		return configs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var cfg Config
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if cfg.Name == "" {
			return nil, fmt.Errorf("%s: config has no name", entry.Name())
		}
		if cfg.Model == "" {
			cfg.Model = def.Model
		}
		if cfg.Summaries == nil {
			cfg.Summaries = def.Summaries
		}
		configs[cfg.Name] = &cfg
	}
	return configs, nil
}

// DefaultConfig returns the built-in prompt set.
func DefaultConfig() *Config {
	cardParameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "A short title for the values card.",
			},
			"instructions_short": map[string]any{
				"type":        "string",
				"description": "One sentence describing how to attend to the value.",
			},
			"instructions_detailed": map[string]any{
				"type":        "string",
				"description": "A paragraph describing the value in detail.",
			},
			"evaluation_criteria": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Ordered list of things to attend to when living by this value.",
			},
		},
		"required": []any{"title", "instructions_short", "instructions_detailed", "evaluation_criteria"},
	}

	return &Config{
		Name:  "default",
		Model: "gpt-4-0613",
		Prompts: Prompts{
			Main: PromptSpec{
				Prompt: "You are a values articulation guide. Your task is to help the user " +
					"surface one of their personal values as a values card. " + PlaceholderTask +
					" Ask open questions about meaningful choices the user has made, and guess " +
					"at the value behind them. When you have a clear enough picture, call " +
					"show_values_card to articulate a card. " + PlaceholderSubmitStep +
					" Never invent values the user has not expressed.",
				Functions: []llm.FunctionDefinition{
					{
						Name:        FunctionGuessValuesCard,
						Description: "Guess at the value behind what the user has shared so far.",
						Parameters: map[string]any{
							"type": "object",
							"properties": map[string]any{
								"values_card": cardParameters,
							},
						},
					},
					{
						Name:        FunctionShowValuesCard,
						Description: "Articulate the user's value as a values card and show it to them.",
						Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
					},
					{
						Name:        FunctionSubmitValuesCard,
						Description: "Submit the values card shown to the user, once they are happy with it.",
						Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
					},
				},
			},
			ShowValuesCard: PromptSpec{
				Prompt: "You evaluate conversations about personal values and produce values " +
					"cards. Given a transcript, write the card the user's words support. If the " +
					"card would not yet meet the guidelines (too vague, not evaluable, or about " +
					"someone else's values), include a critique instead of guessing.",
				Functions: []llm.FunctionDefinition{
					{
						Name:        FunctionFormatCard,
						Description: "Format the values card articulated from the transcript.",
						Parameters: map[string]any{
							"type": "object",
							"properties": map[string]any{
								"values_card": cardParameters,
								"critique": map[string]any{
									"type":        "string",
									"description": "Why the card does not yet meet the guidelines, if it does not.",
								},
							},
							"required": []any{"values_card"},
						},
					},
				},
			},
		},
		Summaries: map[string]string{
			SummaryShowValuesCard:         "A values card titled \"{{title}}\" was articulated and shown to the user.",
			SummaryShowValuesCardCritique: "The card is not yet meeting the guidelines: {{critique}} Ask the user a followup question to address this.",
			SummarySubmitValuesCard:       "The values card \"{{title}}\" was submitted. Thank the user for their contribution.",
		},
	}
}

// Summary template keys.
const (
	SummaryShowValuesCard         = "show_values_card"
	SummaryShowValuesCardCritique = "show_values_card_critique"
	SummarySubmitValuesCard       = "submit_values_card"
)
