package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatsentry/chatsentry/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify a message without ingesting it",
	Run:   runClassify,
}

func runClassify(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		fmt.Println("Error: a message argument is required")
		os.Exit(1)
	}
	content := strings.Join(args, " ")
	res := classify.Classify(content)

	fmt.Printf("Report:     %v\n", res.IsReport)
	fmt.Printf("Request:    %v\n", res.IsRequest)
	fmt.Printf("Severity:   %d\n", res.Severity)
	if res.IsReport {
		fmt.Printf("Type:       %s\n", res.ReportType)
		fmt.Printf("Confidence: %.2f\n", res.Confidence)
	}
}
