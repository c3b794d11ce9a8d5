package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pep299/news-chat/internal/chat"
	"github.com/pep299/news-chat/internal/lotto"
	"github.com/pep299/news-chat/internal/model"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "List news articles for a keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		articles, err := svc.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		printArticles(cmd.OutOrStdout(), articles)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <keyword>",
	Short: "Search and summarize the top articles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		keyword := strings.Join(args, " ")
		articles, err := svc.Search(cmd.Context(), keyword)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printArticles(out, articles)

		text, err := svc.Summarize(cmd.Context(), keyword, articles, modelName)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", text)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <keyword>",
	Short: "Start a session and ask follow-up questions",
	Long: `Start a session for the keyword, print its summary and read questions
from standard input. An empty line, "exit" or "quit" ends the chat.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		return runChat(cmd, svc, strings.Join(args, " "))
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		limit, _ := cmd.Flags().GetInt("limit")
		sessions, err := svc.ListSessions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printSessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var lottoCmd = &cobra.Command{
	Use:   "lotto",
	Short: "Draw 6/45 lotto number sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		include, _ := cmd.Flags().GetString("include")
		exclude, _ := cmd.Flags().GetString("exclude")
		sets, _ := cmd.Flags().GetInt("sets")
		sortMode, _ := cmd.Flags().GetString("sort")

		drawn, err := lotto.NewPicker(nil).Generate(lotto.Options{
			Include: lotto.ParseNumbers(include),
			Exclude: lotto.ParseNumbers(exclude),
			Sets:    sets,
			Sort:    sortMode,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), lotto.FormatSets(drawn))
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", model.MaxListSessions, "maximum sessions to list")

	lottoCmd.Flags().String("include", "", "numbers every set must contain, e.g. \"3, 7\"")
	lottoCmd.Flags().String("exclude", "", "numbers no set may contain")
	lottoCmd.Flags().Int("sets", 5, "number of sets (1-10)")
	lottoCmd.Flags().String("sort", lotto.SortAsc, "\"asc\" to sort each set, anything else keeps draw order")

	rootCmd.AddCommand(searchCmd, summarizeCmd, chatCmd, sessionsCmd, lottoCmd)
}

func runChat(cmd *cobra.Command, svc *chat.Service, keyword string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	session, err := svc.StartSession(ctx, keyword, modelName)
	if err != nil {
		if session == nil {
			return err
		}
		// Articles were found; keep chatting even if the summary failed.
		fmt.Fprintf(out, "⚠️ %s\n", model.MessageOf(err))
	}
	printArticles(out, session.Articles)
	if session.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", session.Summary)
	}
	fmt.Fprintf(out, "\nsession %s\n", session.ID)

	return chatLoop(cmd.InOrStdin(), out, func(question string) (string, error) {
		_, answer, err := svc.SendMessage(ctx, session.ID, question, modelName)
		return answer, err
	})
}

// chatLoop reads one question per line until EOF, an empty line or exit.
func chatLoop(in io.Reader, out io.Writer, ask func(string) (string, error)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "", "exit", "quit":
			return nil
		}

		answer, err := ask(question)
		if err != nil {
			fmt.Fprintf(out, "❌ %s\n", model.MessageOf(err))
			continue
		}
		fmt.Fprintln(out, answer)
	}
}
