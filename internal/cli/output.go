package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"pulptool/internal/results"
	"pulptool/internal/transfer"
	"pulptool/pkg/bytesize"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1adf9a"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cc6a"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5a623"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// printUploadSummary renders the human-readable side of an upload run.
func printUploadSummary(report results.Report, resultsURL string) {
	fmt.Println(headingStyle.Render("Upload summary"))
	fmt.Printf("  Build:       %s\n", report.BuildID)
	fmt.Printf("  Invocation:  %s\n", mutedStyle.Render(report.InvocationID))
	fmt.Printf("  RPM batches: %d\n", report.Counts.RPMs)
	fmt.Printf("  Logs:        %d\n", report.Counts.Logs)
	fmt.Printf("  SBOMs:       %d\n", report.Counts.SBOM)
	fmt.Printf("  Files:       %d\n", report.Counts.Files)
	fmt.Printf("  Artifacts:   %d\n", len(report.Artifacts))
	if len(report.Errors) > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  Errors:      %d", len(report.Errors))))
		for _, msg := range report.Errors {
			fmt.Println(warnStyle.Render("    - " + msg))
		}
	}
	fmt.Println(successStyle.Render("RESULTS JSON URL: " + resultsURL))
}

// printTransferSummary renders the outcome of a transfer run.
func printTransferSummary(pulled *transfer.PulledArtifacts, outDir string) {
	completed, failed := pulled.Counts()
	fmt.Println(headingStyle.Render("Transfer summary"))
	fmt.Printf("  Output:    %s\n", outDir)
	fmt.Printf("  Completed: %s\n", successStyle.Render(fmt.Sprintf("%d", completed)))
	fmt.Printf("  Size:      %s\n", bytesize.Format(pulled.Bytes()))
	if failed > 0 {
		fmt.Printf("  Failed:    %s\n", errorStyle.Render(fmt.Sprintf("%d", failed)))
		for _, r := range pulled.Failed() {
			fmt.Println(errorStyle.Render("    - " + r.Item.Name + ": " + r.Err.Error()))
		}
	} else {
		fmt.Printf("  Failed:    %d\n", failed)
	}
}
