// SPDX-License-Identifier: MIT

package report

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/snaptally/snaptally/internal/challenge"
)

// csvHeader keeps the column set and order of the reports users already
// consume downstream.
var csvHeader = []string{"post_link", "image_links", "posted_at", "author", "reactions"}

// WriteCSV writes one row per image post to path. The write is atomic and
// durable: the file appears complete or not at all.
func WriteCSV(path string, tallies []challenge.Tally) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending CSV file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	w := csv.NewWriter(pending)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, t := range tallies {
		row := []string{
			t.Link,
			strings.Join(t.ImageURLs, ", "),
			t.PostedAt.UTC().Format(time.RFC3339),
			t.Author,
			strconv.Itoa(t.Total),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace CSV file: %w", err)
	}
	return nil
}
