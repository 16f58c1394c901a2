package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/wiki-ngrams/models"
	"github.com/go-shiori/go-readability"
)

// blockSelector lists the content-bearing tags kept from the distilled page.
const blockSelector = "h1,h2,h3,h4,h5,h6,p,li,dd,blockquote,table,pre"

type Parser struct{}

// ParseDocument uses go-readability to find the main article content of an
// HTML page and flattens its blocks into plain text, one block per line.
// Tables contribute their cell text row by row; code blocks are dropped.
func (p *Parser) ParseDocument(rawURL, html string) (models.Document, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return models.Document{}, fmt.Errorf("invalid document url %q: %w", rawURL, err)
	}

	readabilityParser := readability.NewParser()
	article, err := readabilityParser.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return models.Document{}, fmt.Errorf("readability failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to parse article content: %w", err)
	}

	var lines []string
	doc.Find(blockSelector).Each(func(i int, s *goquery.Selection) {
		// Nested blocks are reached through their own match.
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		switch goquery.NodeName(s) {
		case "table":
			lines = append(lines, extractTable(s)...)
		case "pre":
		default:
			if text := normalizeText(s.Text()); text != "" {
				lines = append(lines, text)
			}
		}
	})

	return models.Document{
		Title: normalizeText(article.Title),
		Text:  strings.Join(lines, "\n"),
	}, nil
}

// normalizeText cleans up a string by trimming space and removing excess newlines.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

// extractTable returns one line per table row with the cell texts joined by spaces.
func extractTable(s *goquery.Selection) []string {
	var rows []string
	s.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(j int, cell *goquery.Selection) {
			if text := normalizeText(cell.Text()); text != "" {
				cells = append(cells, text)
			}
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " "))
		}
	})
	return rows
}
