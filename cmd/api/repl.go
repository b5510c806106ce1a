package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/agricare/backend/internal/service/turn"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "farmer", Value: "ravi-kumar", Usage: "Farmer profile `ID`"},
			&cli.StringFlag{Name: "language", Value: "English", Usage: "Reply language"},
		},
		Action: func(c *cli.Context) error {
			app, err := buildApplication(c.Context, c.String("config"))
			if err != nil {
				return err
			}
			session, err := app.turns.CreateSession(c.Context, c.String("farmer"), c.String("language"))
			if err != nil {
				return err
			}
			return runREPL(c.Context, app.turns, session.ID, c.App.Reader, c.App.Writer)
		},
	}
}

// runREPL reads one turn per line. Lines starting with "/" are commands.
func runREPL(ctx context.Context, turns *turn.Service, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "AgriCare AI. Type /help for commands, /quit to leave.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := replCommand(ctx, turns, sessionID, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		result, err := turns.HandleTurn(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if result.Duplicate {
			fmt.Fprintln(out, "(already sent)")
			continue
		}
		fmt.Fprintf(out, "[%s %s via %s]\n%s\n", result.Emotion.Emoji(), result.Emotion, result.Backend, result.BotText)
		if result.EmergencyFired {
			fmt.Fprintf(out, "[EMERGENCY] WhatsApp alert sent to %d family members\n", result.NotifiedCount)
		}
		for _, h := range result.Helplines {
			fmt.Fprintf(out, "  %s (%s): %s\n", h.Name, h.Purpose, h.Number)
		}
	}
}

func replCommand(ctx context.Context, turns *turn.Service, sessionID, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, "/starters, /start <id>, /checkin <great|okay|struggling|frustrated>, /history, /insights, /clear, /helplines, /quit")
	case "/starters":
		for _, s := range turns.Starters() {
			fmt.Fprintf(out, "  %-18s %s\n", s.ID, s.UserText)
		}
	case "/start":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /start <id>")
		}
		msg, err := turns.StartConversation(ctx, sessionID, fields[1])
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "you: %s\n%s\n", msg.UserText, msg.BotText)
	case "/checkin":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /checkin <mood>")
		}
		msg, err := turns.CheckIn(ctx, sessionID, turn.Mood(fields[1]))
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, msg.BotText)
	case "/history":
		text, err := turns.ExportTranscript(ctx, sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprint(out, text)
	case "/insights":
		ins, err := turns.Insights(ctx, sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "messages: %d, primary emotion: %s, alerts: %d\n", ins.TotalMessages, ins.PrimaryEmotion, ins.AlertsFired)
		for _, note := range ins.Notes {
			fmt.Fprintf(out, "  - %s\n", note)
		}
	case "/clear":
		return false, turns.Clear(ctx, sessionID)
	case "/helplines":
		for _, h := range turn.Helplines() {
			fmt.Fprintf(out, "  %s (%s): %s\n", h.Name, h.Purpose, h.Number)
		}
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}
