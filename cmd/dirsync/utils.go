package main

import "github.com/charmbracelet/lipgloss"

// https://github.com/muesli/termenv/blob/master/ansicolors.go
var red = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
