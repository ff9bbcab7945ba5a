package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trustflow-labs/trustflow/internal/api"
	"github.com/trustflow-labs/trustflow/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check content provenance against the chain",
}

var verifyTextCmd = &cobra.Command{
	Use:   "text <content>",
	Short: "Verify a piece of text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		service := verify.NewService(app.client, app.logger)
		result, err := service.CheckText(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printVerifyResult(result)
		return nil
	},
}

var verifyFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Verify an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		service := verify.NewService(app.client, app.logger)
		result, err := service.CheckFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printVerifyResult(result)
		return nil
	},
}

var verifyTxCmd = &cobra.Command{
	Use:   "tx <hash>",
	Short: "Look up an anchored record by transaction hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer cleanupLogging()

		service := verify.NewService(app.client, app.logger)
		record, err := service.LookupHash(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printTxRecord(record)
		return nil
	},
}

func printVerifyResult(result *api.VerifyResult) {
	fmt.Printf("Status: %s (%s)\n", result.Status, result.VerificationType)
	fmt.Printf("Result: %s\n", result.CheckResult)
	if record := result.MatchedRecord; record != nil {
		fmt.Printf("Matched record %d, tx %s", record.RecordID, record.TxHash)
		if record.Similarity > 0 {
			fmt.Printf(" (similarity %.2f)", record.Similarity)
		}
		fmt.Println()
	}
	if record := result.OriginalRecord; record != nil {
		fmt.Printf("Original record %d, tx %s\n", record.RecordID, record.TxHash)
	}
	for _, c := range result.Citations {
		fmt.Printf("引用 %s p.%d (%.2f): %s\n", c.FileName, c.Page, c.Score, c.TextSnippet)
	}
}

func printTxRecord(record *api.TxRecord) {
	fmt.Printf("Tx:      %s\n", record.TxHash)
	if record.ContentType != "" {
		fmt.Printf("Type:    %s\n", record.ContentType)
	}
	if !record.CreatedAt.IsZero() {
		fmt.Printf("Created: %s\n", record.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if record.Content != "" {
		fmt.Printf("Content:\n%s\n", record.Content)
	}
	if record.WatermarkStatus != "" {
		fmt.Printf("Watermark: %s\n", record.WatermarkStatus)
	}
	if len(record.DialogChain) > 0 {
		fmt.Println("Dialog chain:")
		for _, msg := range record.DialogChain {
			fmt.Printf("  [%s] %s\n", msg.Role, msg.Content)
		}
	}
	for _, c := range record.Citations {
		fmt.Printf("引用 %s p.%d (%.2f)\n", c.FileName, c.Page, c.Score)
	}
	if record.BlockchainExplorer != "" {
		fmt.Printf("Explorer: %s\n", record.BlockchainExplorer)
	}
}

func init() {
	verifyCmd.AddCommand(verifyTextCmd, verifyFileCmd, verifyTxCmd)
	rootCmd.AddCommand(verifyCmd)
}
