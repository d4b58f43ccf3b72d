package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var showText bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect and remove ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(a)

		docs, err := a.Pipeline.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents ingested.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tCHUNKS\tINGESTED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				d.ID, d.Metadata.Title, d.Metadata.SourceType, d.ChunkCount,
				d.Metadata.IngestedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(a)

		d, err := a.Pipeline.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:        %s\n", d.ID)
		fmt.Printf("Filename:  %s\n", d.Filename)
		fmt.Printf("Title:     %s\n", d.Metadata.Title)
		if d.Metadata.Author != "" {
			fmt.Printf("Author:    %s\n", d.Metadata.Author)
		}
		fmt.Printf("Type:      %s\n", d.Metadata.SourceType)
		if d.Metadata.PageCount > 0 {
			fmt.Printf("Pages:     %d\n", d.Metadata.PageCount)
		}
		fmt.Printf("Chunks:    %d\n", d.ChunkCount)
		fmt.Printf("Ingested:  %s\n", d.Metadata.IngestedAt.Local().Format(time.RFC3339))
		if d.Metadata.Summary != "" {
			fmt.Printf("Summary:   %s\n", d.Metadata.Summary)
		}
		if len(d.Metadata.Keywords) > 0 {
			fmt.Printf("Keywords:  %s\n", strings.Join(d.Metadata.Keywords, ", "))
		}
		if showText {
			fmt.Println()
			fmt.Println(d.Text)
		}
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>...",
	Short: "Remove documents and their passages from the collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp(a)

		for _, id := range args {
			if err := a.Pipeline.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	docsShowCmd.Flags().BoolVar(&showText, "text", false, "also print the extracted text")
	docsCmd.AddCommand(docsListCmd, docsShowCmd, docsDeleteCmd)
}
