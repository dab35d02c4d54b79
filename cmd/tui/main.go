package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rumble-backup/internal/tui"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Backup server address")
	flag.Parse()

	model := tui.InitialModel(tui.NewClient(*addr))

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
