package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trustflow-labs/trustflow/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the RAG knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge-base documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		manager := knowledge.NewManager(app.client, app.logger)
		docs, err := manager.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILENAME\tTYPE\tSIZE\tSTATUS\tCHUNKS\tTX")
		for _, doc := range docs {
			tx := "-"
			if doc.Anchored() {
				tx = doc.TxHash
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
				doc.ID, doc.Filename, doc.FileType, humanSize(doc.FileSize), doc.Status, doc.ChunkCount, tx)
		}
		return w.Flush()
	},
}

var kbUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document into the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		manager := knowledge.NewManager(app.client, app.logger)
		resp, err := manager.Upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (file %d): %s\n", resp.FileName, resp.FileID, resp.Message)
		return nil
	},
}

var kbRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a knowledge-base document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id %q", args[0])
		}

		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		manager := knowledge.NewManager(app.client, app.logger)
		if err := manager.Delete(cmd.Context(), docID); err != nil {
			return err
		}
		fmt.Printf("Deleted document %d\n", docID)
		return nil
	},
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func init() {
	kbCmd.AddCommand(kbListCmd, kbUploadCmd, kbRmCmd)
	rootCmd.AddCommand(kbCmd)
}
