package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"toechat/internal/logger"
	"toechat/pkg/chattypes"
)

var (
	sendSession string
	sendFiles   []string
	exportOut   string
)

var promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
var noticeStyle = lipgloss.NewStyle().Faint(true)
var warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

// sendCmd performs a single send and prints the assistant's reply.
var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send one message and print the reply",
	Args:  cobra.ArbitraryArgs,
	RunE:  runSend,
}

// sessionsCmd groups the session management subcommands.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, show, and delete sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

// usageCmd shows the per-category quota state.
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show plan usage",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

// exportCmd writes a session transcript to a YAML file.
var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session transcript to YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	sendCmd.Flags().StringVar(&sendSession, "session", "", "Target session identifier (omit to create a new session)")
	sendCmd.Flags().StringArrayVar(&sendFiles, "file", nil, "Attach a file (repeatable)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output path (defaults to <session-id>.yaml)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func runChat(_ *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	ref := chattypes.NewSession()
	if len(args) == 1 {
		ref, err = chattypes.ParseSessionRef(args[0])
		if err != nil {
			return err
		}
	}

	eng.quota.SetWarningFunc(func(c chattypes.Category, q chattypes.QuotaState) {
		fmt.Println(warnStyle.Render(fmt.Sprintf("You have used %d of %d %s chats this period.", q.Used, q.Limit, c)))
	})
	if _, err := eng.quota.FetchUsage(ctx); err != nil {
		return err
	}

	if !ref.IsNew() {
		session, err := eng.store.LoadSession(ctx, cat, ref.ID())
		if err != nil {
			return presentError(err)
		}
		transcript, err := eng.markdown.RenderTranscript(session)
		if err != nil {
			return err
		}
		fmt.Print(transcript)
	} else {
		fmt.Println(noticeStyle.Render("New conversation. Type a message, or /quit to leave."))
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "" {
			continue
		}

		result, err := eng.pipeline.Send(ctx, ref, cat, line, nil)
		if err != nil {
			if presented := presentError(err); presented != nil {
				fmt.Println(presented)
			}
			// Input is not consumed by a failed send; re-submit retries.
			continue
		}

		// Promotion: adopt the minted identifier in place, no reload and no
		// duplicate history.
		if result.WasNewlyCreated {
			ref, err = chattypes.ExistingSession(result.CreatedSessionID)
			if err != nil {
				return err
			}
			fmt.Println(noticeStyle.Render("session: " + result.CreatedSessionID))
		}

		if n := len(result.Session.Messages); n > 0 {
			rendered, err := eng.markdown.RenderMessage(result.Session.Messages[n-1])
			if err != nil {
				return err
			}
			fmt.Print(rendered)
		}
	}

	return scanner.Err()
}

func runSend(_ *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	ref, err := chattypes.ParseSessionRef(sendSession)
	if err != nil {
		return err
	}

	uploads, err := readFileUploads(sendFiles)
	if err != nil {
		return err
	}

	if _, err := eng.quota.FetchUsage(ctx); err != nil {
		return err
	}

	content := strings.Join(args, " ")
	result, err := eng.pipeline.Send(ctx, ref, cat, content, uploads)
	if err != nil {
		return presentError(err)
	}

	if result.WasNewlyCreated {
		fmt.Println(noticeStyle.Render("session: " + result.CreatedSessionID))
	}
	if n := len(result.Session.Messages); n > 0 {
		rendered, err := eng.markdown.RenderMessage(result.Session.Messages[n-1])
		if err != nil {
			return err
		}
		fmt.Print(rendered)
	}
	return nil
}

func runSessionsList(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	page, err := eng.store.ListSessions(ctx, cat, 1, 50)
	if err != nil {
		return presentError(err)
	}

	if len(page.Sessions) == 0 {
		fmt.Println(noticeStyle.Render("No sessions."))
		return nil
	}
	for _, session := range page.Sessions {
		fmt.Printf("%s  %s\n", session.ID, session.Title)
	}
	fmt.Println(noticeStyle.Render(fmt.Sprintf("%d total", page.Total)))
	return nil
}

func runSessionsShow(_ *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	session, err := eng.store.LoadSession(ctx, cat, args[0])
	if err != nil {
		return presentError(err)
	}

	transcript, err := eng.markdown.RenderTranscript(session)
	if err != nil {
		return err
	}
	fmt.Print(transcript)
	return nil
}

func runSessionsDelete(_ *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	if err := eng.store.DeleteSession(ctx, cat, args[0]); err != nil {
		return presentError(err)
	}
	fmt.Println("Deleted.")
	return nil
}

func runUsage(_ *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	usage, err := eng.quota.FetchUsage(ctx)
	if err != nil {
		return err
	}

	for _, cat := range []chattypes.Category{chattypes.CategoryNormal, chattypes.CategoryInterview} {
		state := usage[cat]
		line := fmt.Sprintf("%-10s %d / %d", cat, state.Used, state.Limit)
		if state.Remaining() == 0 {
			line = warnStyle.Render(line)
		}
		fmt.Println(line)
		if !state.ResetDate.IsZero() {
			fmt.Println(noticeStyle.Render("  resets " + state.ResetDate.Format("2006-01-02")))
		}
	}
	return nil
}

func runExport(_ *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cat, err := eng.resolveCategory()
	if err != nil {
		return err
	}

	if _, err := eng.store.LoadSession(ctx, cat, args[0]); err != nil {
		return presentError(err)
	}

	out := exportOut
	if out == "" {
		out = args[0] + ".yaml"
	}
	if err := eng.store.ExportSession(out); err != nil {
		return err
	}
	fmt.Println("Exported to " + out)
	return nil
}

// presentError translates the engine's error taxonomy into user-facing
// messages. The usage gate gets an upgrade prompt rather than a generic
// failure banner.
func presentError(err error) error {
	switch {
	case errors.Is(err, chattypes.ErrUsageLimitReached):
		return fmt.Errorf("you have reached your plan's chat limit; upgrade to premium to continue")
	case errors.Is(err, chattypes.ErrNotFound):
		return fmt.Errorf("that session does not exist (it may have been deleted)")
	case errors.Is(err, chattypes.ErrInvalidIdentifier):
		return fmt.Errorf("that does not look like a session identifier")
	case errors.Is(err, chattypes.ErrUploadFailed):
		return fmt.Errorf("attachment upload failed; nothing was sent")
	case errors.Is(err, chattypes.ErrEmptyMessage):
		return fmt.Errorf("nothing to send")
	default:
		logger.Error("Command failed", "error", err)
		return err
	}
}
