package tui

import (
	"github.com/charmbracelet/lipgloss"

	"ucb-agent/src/unitycloud"
)

// StyleConfig holds the customizable colors for the watch UI.
type StyleConfig struct {
	PrimaryBlue   lipgloss.Color
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	SpinnerGold   lipgloss.Color

	SuccessGreen lipgloss.Color
	FailureRed   lipgloss.Color
	PendingBlue  lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:   lipgloss.Color("#8AB4F8"),
		TextPrimary:   lipgloss.Color("#E8EAED"),
		TextSecondary: lipgloss.Color("#9AA0A6"),
		SpinnerGold:   lipgloss.Color("#FFD700"),
		SuccessGreen:  lipgloss.Color("#34A853"),
		FailureRed:    lipgloss.Color("#EA4335"),
		PendingBlue:   lipgloss.Color("#24C1E0"),
	}
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 1)
}

// StatusStyle returns a style colored for the given build status.
func (s *StyleConfig) StatusStyle(status string) lipgloss.Style {
	color := s.PendingBlue
	switch {
	case unitycloud.IsSuccessStatus(status):
		color = s.SuccessGreen
	case unitycloud.IsFailureStatus(status):
		color = s.FailureRed
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}
