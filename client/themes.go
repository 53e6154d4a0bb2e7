package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

type themeStyles struct {
	User     lipgloss.Style
	Me       lipgloss.Style
	Time     lipgloss.Style
	Msg      lipgloss.Style
	Status   lipgloss.Style
	Banner   lipgloss.Style
	Box      lipgloss.Style // frame color
	Mention  lipgloss.Style // mention highlighting
	Sidebar  lipgloss.Style
	Active   lipgloss.Style // selected channel
	Header   lipgloss.Style
	Modal    lipgloss.Style
	Markdown string // glamour standard style
}

// ThemeColors defines the customizable colors of a theme
type ThemeColors struct {
	User      string `json:"user"`
	Me        string `json:"me"`
	Time      string `json:"time"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Banner    string `json:"banner"`
	BoxBorder string `json:"box_border"`
	Mention   string `json:"mention"`
	Active    string `json:"active"`
	HeaderBg  string `json:"header_bg"`
	HeaderFg  string `json:"header_fg"`
}

// ThemeDefinition is one entry of a themes.json file
type ThemeDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Dark        bool        `json:"dark"`
	Colors      ThemeColors `json:"colors"`
}

// ThemeFile represents the structure of themes.json
type ThemeFile map[string]ThemeDefinition

var builtInThemes = map[string]ThemeDefinition{
	"slack": {Name: "slack", Description: "Slack-like aubergine and cyan", Dark: true, Colors: ThemeColors{
		User: "#36C5F0", Me: "#2EB67D", Time: "#999999", Message: "#FFFFFF", Status: "#999999",
		Banner: "#FF5F5F", BoxBorder: "#36C5F0", Mention: "#FF00FF", Active: "#ECB22E",
		HeaderBg: "#4A154B", HeaderFg: "#FFFFFF",
	}},
	"discord": {Name: "discord", Description: "Discord-like blurple", Dark: true, Colors: ThemeColors{
		User: "#7289DA", Me: "#43B581", Time: "#99AAB5", Message: "#FFFFFF", Status: "#99AAB5",
		Banner: "#FF5F5F", BoxBorder: "#7289DA", Mention: "#FFD700", Active: "#FFFFFF",
		HeaderBg: "#2C2F33", HeaderFg: "#FFFFFF",
	}},
	"aim": {Name: "aim", Description: "AOL Instant Messenger yellow and blue", Dark: true, Colors: ThemeColors{
		User: "#FFCC00", Me: "#FF6600", Time: "#00AEEF", Message: "#FFFFFF", Status: "#00AEEF",
		Banner: "#FF5F5F", BoxBorder: "#FFCC00", Mention: "#FFD700", Active: "#FFCC00",
		HeaderBg: "#003399", HeaderFg: "#FFCC00",
	}},
}

var customThemes = ThemeFile{}

// LoadCustomThemes reads extra themes from a themes.json file. A missing
// file leaves only the built-in themes.
func LoadCustomThemes(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		customThemes = ThemeFile{}
		return nil
	}
	if err != nil {
		return err
	}

	themes := ThemeFile{}
	if err := json.Unmarshal(data, &themes); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for key, def := range themes {
		if def.Name == "" {
			def.Name = key
			themes[key] = def
		}
	}
	customThemes = themes
	return nil
}

// ListAllThemes returns all available themes (built-in + custom)
func ListAllThemes() []string {
	names := []string{"system", "slack", "discord", "aim"}
	custom := make([]string, 0, len(customThemes))
	for name := range customThemes {
		if name != "system" && builtInThemes[name].Name == "" {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return append(names, custom...)
}

func getThemeStyles(theme string) themeStyles {
	if def, ok := customThemes[theme]; ok {
		return applyTheme(def)
	}
	if def, ok := builtInThemes[theme]; ok {
		return applyTheme(def)
	}
	return themeStyles{
		User:     lipgloss.NewStyle().Bold(true),
		Me:       lipgloss.NewStyle().Bold(true).Underline(true),
		Time:     lipgloss.NewStyle().Faint(true),
		Msg:      lipgloss.NewStyle(),
		Status:   lipgloss.NewStyle().Faint(true).Italic(true),
		Banner:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		Box:      lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#AAAAAA")),
		Mention:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")),
		Sidebar:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#AAAAAA")).Padding(0, 1),
		Active:   lipgloss.NewStyle().Bold(true).Reverse(true),
		Header:   lipgloss.NewStyle().Bold(true),
		Modal:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#AAAAAA")).Padding(1, 2),
		Markdown: "notty",
	}
}

func applyTheme(def ThemeDefinition) themeStyles {
	c := def.Colors
	markdown := "light"
	if def.Dark {
		markdown = "dark"
	}
	return themeStyles{
		User:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.User)),
		Me:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Me)),
		Time:     lipgloss.NewStyle().Foreground(lipgloss.Color(c.Time)),
		Msg:      lipgloss.NewStyle().Foreground(lipgloss.Color(c.Message)),
		Status:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color(c.Status)),
		Banner:   lipgloss.NewStyle().Foreground(lipgloss.Color(c.Banner)).Bold(true),
		Box:      lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color(c.BoxBorder)),
		Mention:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Mention)),
		Sidebar:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(c.BoxBorder)).Padding(0, 1),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Active)),
		Header:   lipgloss.NewStyle().Bold(true).Background(lipgloss.Color(c.HeaderBg)).Foreground(lipgloss.Color(c.HeaderFg)).Padding(0, 1),
		Modal:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(c.BoxBorder)).Padding(1, 2),
		Markdown: markdown,
	}
}
