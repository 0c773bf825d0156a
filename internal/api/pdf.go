package api

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mentorlab/mentorbot/internal/storage"
)

// suggestionsFromPDF extracts suggestions from a PDF. Every text line of
// the form "keyword | text | link" becomes one record; other lines are
// ignored so headers and page furniture do not break the import.
func suggestionsFromPDF(data []byte) ([]storage.Suggestion, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("reading pdf text: %w", err)
	}

	var recs []storage.Suggestion
	for _, line := range strings.Split(string(text), "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			continue
		}
		keyword := strings.TrimSpace(parts[0])
		body := strings.TrimSpace(parts[1])
		link := strings.TrimSpace(parts[2])
		if keyword == "" || link == "" {
			continue
		}
		recs = append(recs, storage.Suggestion{
			Keyword: keyword,
			Text:    body,
			Link:    link,
		})
	}

	if len(recs) == 0 {
		return nil, fmt.Errorf("no suggestion lines found in pdf")
	}
	return recs, nil
}
