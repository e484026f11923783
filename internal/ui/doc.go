// Package ui styles CLI output with lipgloss.
//
// It renders recommendation results as a table ([RenderTracks]) and pipeline progress
// as single status lines ([RenderProgress]). Colors come from a shared [Palette].
package ui
