package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cctally/cctally/internal/ledger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics from the ledgers",
	Long: `Summarize the recorded ledgers: sessions, turns, tool calls, and cost.

Sessions may carry multiple terminal records (Stop can fire per turn); only
the most recent row per session ID counts.`,
	RunE: runStats,
}

var statsLimit int

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "top", 5, "How many tools to list")
}

var (
	statsTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(18)
	statsValueStyle = lipgloss.NewStyle().Bold(true)
)

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	w, err := newLedgerWriter(cfg)
	if err != nil {
		return err
	}

	sessions, err := w.ReadAll(ledger.CategorySessions)
	if err != nil {
		return fmt.Errorf("failed to read sessions ledger: %w", err)
	}
	turns, err := w.ReadAll(ledger.CategoryTurns)
	if err != nil {
		return fmt.Errorf("failed to read turns ledger: %w", err)
	}
	tools, err := w.ReadAll(ledger.CategoryTools)
	if err != nil {
		return fmt.Errorf("failed to read tools ledger: %w", err)
	}

	// Latest terminal record wins per session.
	latest := make(map[string][]string)
	for _, row := range sessions {
		if len(row) > 0 {
			latest[row[0]] = row
		}
	}

	var totalCost float64
	for _, row := range latest {
		if len(row) > 10 {
			if cost, err := strconv.ParseFloat(row[10], 64); err == nil {
				totalCost += cost
			}
		}
	}

	toolCounts := make(map[string]int)
	for _, row := range tools {
		if len(row) > 2 {
			toolCounts[row[2]]++
		}
	}

	fmt.Println(statsTitleStyle.Render("cctally usage"))
	printStat("Sessions", strconv.Itoa(len(latest)))
	printStat("Turns", strconv.Itoa(len(turns)))
	printStat("Tool calls", strconv.Itoa(len(tools)))
	printStat("Total cost", fmt.Sprintf("$%.4f", totalCost))

	if len(toolCounts) > 0 {
		fmt.Println()
		fmt.Println(statsTitleStyle.Render("Top tools"))
		type toolCount struct {
			name  string
			count int
		}
		counts := make([]toolCount, 0, len(toolCounts))
		for name, count := range toolCounts {
			counts = append(counts, toolCount{name, count})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].name < counts[j].name
		})
		if len(counts) > statsLimit {
			counts = counts[:statsLimit]
		}
		for _, tc := range counts {
			printStat(tc.name, strconv.Itoa(tc.count))
		}
	}

	return nil
}

func printStat(label, value string) {
	fmt.Printf("%s %s\n", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}
