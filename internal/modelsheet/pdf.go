package modelsheet

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractLines reassembles text lines from the PDF content stream.
// Fragments are bucketed by rounded baseline and joined left to right,
// because the sheets position every cell as an isolated text run.
func ExtractLines(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var lines []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		type fragment struct {
			x    float64
			text string
		}
		byBaseline := make(map[int][]fragment)
		for _, txt := range page.Content().Text {
			if txt.S == "" {
				continue
			}
			key := int(math.Round(txt.Y))
			byBaseline[key] = append(byBaseline[key], fragment{x: txt.X, text: txt.S})
		}

		baselines := make([]int, 0, len(byBaseline))
		for y := range byBaseline {
			baselines = append(baselines, y)
		}
		// PDF y grows upward: top of the page first.
		sort.Sort(sort.Reverse(sort.IntSlice(baselines)))

		for _, y := range baselines {
			frags := byBaseline[y]
			sort.Slice(frags, func(i, j int) bool { return frags[i].x < frags[j].x })

			parts := make([]string, 0, len(frags))
			for _, f := range frags {
				parts = append(parts, f.text)
			}
			line := strings.TrimSpace(reSpaces.ReplaceAllString(strings.Join(parts, " "), " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}
