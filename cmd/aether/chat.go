package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaceboy92/Aether-IDE/internal/agent"
	"github.com/spaceboy92/Aether-IDE/internal/gateway"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

const chatBanner = `Aether interactive chat.
Type a request to build, or a command:
  /new [prompt]      start a new project (optionally with a first request)
  /sessions          list projects
  /switch <n>        activate project n from the list
  /delete <n>        delete project n (files and snapshots included)
  /files             list the active project's files
  /attach <path>     attach a local file to the next message
  /snapshot [desc]   snapshot the active project
  /quit              exit`

// chatState carries the bits of the loop that survive between inputs.
type chatState struct {
	app     *appContext
	orch    *agent.Orchestrator
	pending []gateway.Attachment
}

func runInteractiveChat() error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	orch := agent.NewOrchestrator(app.store, app.client, app.sessions, app.cfg.GetLLMTimeout())
	state := &chatState{app: app, orch: orch}

	fmt.Println(chatBanner)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := state.handleCommand(line); quit {
				return nil
			}
			continue
		}

		state.send(line)
	}
}

// handleCommand dispatches a slash command. Returns true on /quit.
func (s *chatState) handleCommand(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/new":
		sess, err := s.orch.NewSession(context.Background(), arg)
		if err != nil {
			fmt.Printf("could not create project: %v\n", err)
			return false
		}
		fmt.Printf("project %q ready (%s)\n", sess.Title, sess.ID)
		s.printLastReply()

	case "/sessions":
		sessions := s.app.sessions.Sessions()
		if len(sessions) == 0 {
			fmt.Println("no projects yet; use /new")
			return false
		}
		active, _ := s.app.sessions.Active()
		for i, sess := range sessions {
			marker := " "
			if sess.ID == active.ID {
				marker = "*"
			}
			fmt.Printf("%s %2d. %s (%d messages)\n", marker, i+1, sess.Title, len(sess.Messages))
		}

	case "/switch":
		if sess, ok := s.sessionByIndex(arg); ok {
			if err := s.app.sessions.SetActive(sess.ID); err != nil {
				fmt.Printf("switch failed: %v\n", err)
			} else {
				fmt.Printf("switched to %q\n", sess.Title)
			}
		}

	case "/delete":
		if sess, ok := s.sessionByIndex(arg); ok {
			if err := s.app.sessions.Delete(sess.ID); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			} else {
				fmt.Printf("deleted %q\n", sess.Title)
			}
		}

	case "/files":
		sess, ok := s.app.sessions.Active()
		if !ok {
			fmt.Println("no active project")
			return false
		}
		files, err := s.app.store.GetFiles(sess.ID)
		if err != nil {
			fmt.Printf("could not load files: %v\n", err)
			return false
		}
		for _, f := range files {
			fmt.Printf("  %-30s %s (%d bytes)\n", f.Name, f.Language, len(f.Content))
		}

	case "/attach":
		s.attach(arg)

	case "/snapshot":
		sess, ok := s.app.sessions.Active()
		if !ok {
			fmt.Println("no active project")
			return false
		}
		if arg == "" {
			arg = "manual snapshot"
		}
		snap, err := s.app.store.TakeSnapshot(sess.ID, arg)
		if err != nil {
			fmt.Printf("snapshot failed: %v\n", err)
		} else {
			fmt.Printf("snapshot %s taken (%d files)\n", snap.ID, len(snap.Files))
		}

	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return false
}

// sessionByIndex resolves a 1-based index from /sessions output.
func (s *chatState) sessionByIndex(arg string) (types.ChatSession, bool) {
	sessions := s.app.sessions.Sessions()
	if len(sessions) == 0 {
		fmt.Println("no projects yet; use /new")
		return types.ChatSession{}, false
	}
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > len(sessions) {
		fmt.Printf("expected a project number between 1 and %d\n", len(sessions))
		return types.ChatSession{}, false
	}
	return sessions[n-1], true
}

// attach queues a local file as an inline attachment for the next message.
func (s *chatState) attach(path string) {
	if path == "" {
		fmt.Println("usage: /attach <path>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("could not read %s: %v\n", path, err)
		return
	}
	s.pending = append(s.pending, gateway.Attachment{
		MimeType: mimeTypeForPath(path),
		Data:     base64.StdEncoding.EncodeToString(data),
	})
	fmt.Printf("attached %s (%d bytes)\n", filepath.Base(path), len(data))
}

func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// send runs one chat turn and prints the assistant reply.
func (s *chatState) send(text string) {
	attachments := s.pending
	s.pending = nil

	err := s.orch.SendMessage(context.Background(), text, attachments)
	switch {
	case errors.Is(err, agent.ErrNoActiveSession):
		fmt.Println("no active project; use /new to start one")
		return
	case errors.Is(err, agent.ErrBusy):
		fmt.Println("still working on the previous request")
		return
	case err != nil:
		fmt.Printf("send failed: %v\n", err)
		return
	}

	s.printLastReply()
}

// printLastReply shows the newest assistant message and its citations.
func (s *chatState) printLastReply() {
	sess, ok := s.app.sessions.Active()
	if !ok || len(sess.Messages) == 0 {
		return
	}
	last := sess.Messages[len(sess.Messages)-1]
	if last.Role != types.RoleAssistant {
		return
	}
	fmt.Println(last.Text)
	for _, link := range last.GroundingLinks {
		fmt.Printf("  source: %s (%s)\n", link.Title, link.URI)
	}
}
