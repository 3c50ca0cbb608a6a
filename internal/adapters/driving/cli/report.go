package cli

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbox-usage/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// tokenEnv supplies the token when --token is not given.
const tokenEnv = "MAILBOX_TOKEN"

const shareBarWidth = 20

// Row orders for report.
const (
	sortByPath = "path"
	sortBySize = "size"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print per-folder usage for a mailbox",
	Long: `Compute the mailbox usage in-process and print it as a table.

The token is the same delegated token a browser would send to the API: it is
exchanged on-behalf-of for a Graph token using the configured backend app.

Examples:
  mailbox-usage report --token "$(az account get-access-token --resource api://<client-id> --query accessToken -o tsv)"
  MAILBOX_TOKEN=eyJ... mailbox-usage report --json
  mailbox-usage report --sort size --top 8`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

// Flags for report.
var (
	reportToken string
	reportJSON  bool
	reportSort  string
	reportTop   int
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	barStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("12"))
)

func init() {
	reportCmd.Flags().StringVarP(&reportToken, "token", "t", "", "inbound bearer token (default $"+tokenEnv+")")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the API response body instead of a table")
	reportCmd.Flags().StringVar(&reportSort, "sort", sortByPath,
		"row order: "+sortByPath+" (tree order) or "+sortBySize+" (largest cumulative size first)")
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "show only the first N rows (0 shows all)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	token := strings.TrimSpace(reportToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(tokenEnv))
	}
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return fmt.Errorf("no token: pass --token or set %s", tokenEnv)
	}
	if reportSort != sortByPath && reportSort != sortBySize {
		return fmt.Errorf("invalid --sort %q: want %s or %s", reportSort, sortByPath, sortBySize)
	}
	if reportTop < 0 {
		return fmt.Errorf("invalid --top %d: must not be negative", reportTop)
	}

	_, stack, err := loadStack(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	usage, err := stack.Usage.Compute(ctx, token, func(s domain.RequestState) {
		logger.Debug("report: %s", s)
	})
	if err != nil {
		return fmt.Errorf("compute usage (status %d): %w", domain.StatusOf(err), err)
	}

	rows := selectRows(usage.Folders, reportSort, reportTop)

	out := cmd.OutOrStdout()
	if reportJSON {
		view := *usage
		view.Folders = rows
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(httpapi.NewUsageResponse(&view))
	}

	_, err = fmt.Fprint(out, renderReport(profileHeader(ctx, stack, token), usage, rows))
	return err
}

// selectRows orders folders for display and keeps at most top of them.
// The input slice is not modified.
func selectRows(folders []domain.FlatFolderEntry, sortBy string, top int) []domain.FlatFolderEntry {
	rows := slices.Clone(folders)
	if sortBy == sortBySize {
		slices.SortStableFunc(rows, func(a, b domain.FlatFolderEntry) int {
			return cmp.Compare(b.CumulativeBytes, a.CumulativeBytes)
		})
	}
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}
	return rows
}

// profileHeader names the mailbox owner. Lookup failures only cost the header.
func profileHeader(ctx context.Context, stack *Stack, token string) string {
	if stack.Broker == nil || stack.Profiles == nil {
		return ""
	}

	graphToken, err := stack.Broker.AcquireDownstreamToken(ctx, token)
	if err != nil {
		logger.Warn("report: profile lookup skipped: %v", err)
		return ""
	}
	info, err := stack.Profiles.GetUserInfo(ctx, graphToken)
	if err != nil {
		logger.Warn("report: profile lookup failed: %v", err)
		return ""
	}

	email := info.GetUserEmail()
	switch {
	case info.DisplayName != "" && email != "":
		return fmt.Sprintf("%s <%s>", info.DisplayName, email)
	case email != "":
		return email
	default:
		return info.DisplayName
	}
}

func renderReport(header string, usage *domain.MailboxUsage, rows []domain.FlatFolderEntry) string {
	var sb strings.Builder
	if header != "" {
		sb.WriteString(titleStyle.Render("Mailbox of " + header))
		sb.WriteString("\n")
	}

	if len(usage.Folders) == 0 {
		sb.WriteString("No folders.\n")
		return sb.String()
	}

	cells := make([][]string, 0, len(rows))
	for _, f := range rows {
		cells = append(cells, []string{
			f.FolderPath,
			formatBytes(f.OwnBytes),
			formatBytes(f.CumulativeBytes),
			humanize.Comma(f.TotalItemCount),
			humanize.Comma(f.UnreadItemCount),
			shareBar(f.CumulativeBytes, usage.TotalBytes),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("FOLDER", "SIZE", "TOTAL", "ITEMS", "UNREAD", "SHARE").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 1 && col <= 4:
				return numberStyle
			case col == 5:
				return barStyle
			default:
				return cellStyle
			}
		})

	sb.WriteString(t.String())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total: %s (%.3f GB) in %d folders",
		formatBytes(usage.TotalBytes), httpapi.BytesToGB(usage.TotalBytes), len(usage.Folders))
	if len(rows) < len(usage.Folders) {
		fmt.Fprintf(&sb, " (showing %d)", len(rows))
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// shareBar draws part's share of total as a fixed-width bar and a percentage.
func shareBar(part, total int64) string {
	if total <= 0 {
		return ""
	}
	frac := math.Min(math.Max(float64(part)/float64(total), 0), 1)
	filled := int(math.Round(frac * shareBarWidth))
	return fmt.Sprintf("%s%s %5.1f%%",
		strings.Repeat("█", filled), strings.Repeat("░", shareBarWidth-filled), frac*100)
}
