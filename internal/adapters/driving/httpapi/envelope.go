package httpapi

import (
	"math"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

const bytesPerGB = 1024 * 1024 * 1024

// FolderUsage is one folder row of the response.
type FolderUsage struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	FolderPath      string  `json:"folderPath"`
	Bytes           int64   `json:"bytes"`
	CumulativeBytes int64   `json:"cumulativeBytes"`
	BytesGB         float64 `json:"bytesGB"`
	CumulativeGB    float64 `json:"cumulativeGB"`
	TotalItemCount  int64   `json:"totalItemCount"`
	UnreadItemCount int64   `json:"unreadItemCount"`
}

// UsageResponse is the success body of /api/mailfolders.
type UsageResponse struct {
	TotalMailboxBytes int64         `json:"totalMailboxBytes"`
	TotalMailboxGB    float64       `json:"totalMailboxGB"`
	Folders           []FolderUsage `json:"folders"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// BytesToGB converts bytes to GiB rounded to three decimals, halves away from zero.
func BytesToGB(b int64) float64 {
	return math.Round(float64(b)/bytesPerGB*1000) / 1000
}

// NewUsageResponse builds the response body for a computed usage.
func NewUsageResponse(usage *domain.MailboxUsage) *UsageResponse {
	folders := make([]FolderUsage, len(usage.Folders))
	for i, f := range usage.Folders {
		folders[i] = FolderUsage{
			ID:              f.ID,
			DisplayName:     f.DisplayName,
			FolderPath:      f.FolderPath,
			Bytes:           f.OwnBytes,
			CumulativeBytes: f.CumulativeBytes,
			BytesGB:         BytesToGB(f.OwnBytes),
			CumulativeGB:    BytesToGB(f.CumulativeBytes),
			TotalItemCount:  f.TotalItemCount,
			UnreadItemCount: f.UnreadItemCount,
		}
	}

	return &UsageResponse{
		TotalMailboxBytes: usage.TotalBytes,
		TotalMailboxGB:    BytesToGB(usage.TotalBytes),
		Folders:           folders,
	}
}
