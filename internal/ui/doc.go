// Package ui holds the lipgloss styles shared by terminal output, such as the history listing.
//
// Colors are dropped automatically when the output is not a terminal.
package ui
