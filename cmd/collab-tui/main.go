package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/vibecode/collabhub/internal/app"
	"github.com/vibecode/collabhub/internal/client"
	"github.com/vibecode/collabhub/internal/protocol"
)

func main() {
	hubURL := flag.String("url", "ws://127.0.0.1:3000", "WebSocket base URL of the collaboration hub")
	project := flag.String("project", "demo", "Project room to join")
	userID := flag.String("user", "", "User id (random if empty)")
	name := flag.String("name", "", "Display name")
	color := flag.String("color", "", "Display color as #rrggbb")
	reconnect := flag.Duration("reconnect", client.DefaultReconnectDelay, "Fixed delay between reconnect attempts")
	style := flag.String("style", "dark", "Markdown style for chat (dark, light, notty)")
	logPath := flag.String("log", "", "Write logs to this file")
	flag.Parse()

	if *logPath != "" {
		f, err := tea.LogToFile(*logPath, "collab-tui")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ep, err := client.ResolveEndpoints(*hubURL, *project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *userID == "" {
		*userID = uuid.NewString()
	}
	user := protocol.User{ID: *userID, Name: *name, Color: *color}
	if user.Name == "" {
		user.Name = "user-" + user.ID[:min(6, len(user.ID))]
	}

	collab := client.NewWSClient(ep.Collab, client.ChannelCollab)
	term := client.NewWSClient(ep.Terminal, client.ChannelTerminal)
	collab.SetReconnectDelay(*reconnect)
	term.SetReconnectDelay(*reconnect)

	m := app.New(collab, term, client.NewHTTPClient(ep.HTTP), app.Options{
		ProjectID:     *project,
		User:          user,
		MarkdownStyle: *style,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
