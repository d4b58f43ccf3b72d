package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/domain"
)

var (
	askConversation string
	askTopK         int
	askDocuments    []string
	askNoStream     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the collection",
	Long: `Answers a question from the ingested documents and prints the cited
passages. The answer streams as it is generated unless --no-stream is set.

Pass the printed conversation id with --conversation to ask a follow-up.
Conversations only outlive the process with CONVERSATION_STORE=redis.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "conversation id for follow-up questions")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().StringSliceVar(&askDocuments, "document", nil, "restrict retrieval to these document ids")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer only when complete")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	req := chat.Request{
		Question:       strings.Join(args, " "),
		ConversationID: askConversation,
		TopK:           askTopK,
		Filter:         domain.Filter{DocumentIDs: askDocuments},
	}

	if askNoStream {
		answer, err := a.Chat.Ask(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(answer.Text)
		printSources(answer)
		return nil
	}

	streamed := false
	err = a.Chat.Stream(ctx, req, func(ev chat.Event) error {
		switch ev.Type {
		case chat.EventDelta:
			streamed = true
			fmt.Print(ev.Text)
		case chat.EventEnd:
			fmt.Println()
		case chat.EventFinal:
			printSources(*ev.Answer)
		case chat.EventError:
			// Stream returns the cause; only mark the cut here.
			streamed = false
			fmt.Println("\n[answer incomplete]")
		}
		return nil
	})
	if err != nil && streamed {
		fmt.Println()
	}
	return err
}

func printSources(answer domain.Answer) {
	if answer.Degraded {
		fmt.Println("\n[document search unavailable: answered from conversation history only]")
	}
	if len(answer.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range answer.Citations {
			loc := c.DocumentID
			if c.Title != "" {
				loc = c.Title
			}
			if c.Page > 0 {
				loc = fmt.Sprintf("%s, p. %d", loc, c.Page)
			}
			fmt.Printf("  [%d] %s (score %.2f)\n", c.Marker, loc, c.Score)
		}
	}
	fmt.Printf("\nConfidence: %.2f\n", answer.Confidence)
	fmt.Printf("Conversation: %s\n", answer.ConversationID)
}
