package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle ANSI 6 (Cyan) for headings, readable on any terminal theme
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) for descriptions
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// StoryStyle is the default body style for directed story output.
	StoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))

	// NoticeStyle marks paused notices while a background job holds the session.
	NoticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true)

	// ErrorStyle marks error notices from a failed pipeline.
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)
