// Package export renders contact messages as CSV for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/portfolio/backend/internal/model"
)

// DateLayout is the human-readable timestamp format of the Date column.
const DateLayout = "Jan 2, 2006 3:04 PM"

// ErrEmpty is returned when there are no messages to write.
var ErrEmpty = errors.New("export: no messages")

// Header is the first CSV record.
var Header = []string{"ID", "Name", "Email", "Phone", "Message", "Read", "Starred", "Tags", "Date"}

// Row converts one message into a CSV record aligned with Header.
func Row(m *model.Message) []string {
	return []string{
		m.ID,
		m.Name,
		m.Email,
		m.Phone,
		m.Message,
		strconv.FormatBool(m.Read),
		strconv.FormatBool(m.Starred),
		strings.Join(m.Tags, ", "),
		m.CreatedAt.UTC().Format(DateLayout),
	}
}

// WriteCSV writes Header followed by one record per message. Quoting of
// commas, quotes and newlines is handled by encoding/csv.
func WriteCSV(w io.Writer, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return ErrEmpty
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, m := range msgs {
		if err := cw.Write(Row(m)); err != nil {
			return fmt.Errorf("export: write row %s: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns the download name for an export generated at now.
func FileName(now time.Time) string {
	return "messages-" + now.UTC().Format("2006-01-02") + ".csv"
}
