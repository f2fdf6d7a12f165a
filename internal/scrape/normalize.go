package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// DefaultLowContentThreshold is the rune count below which extracted text is
// flagged as low content when no threshold is configured.
const DefaultLowContentThreshold = 200

var whitespaceRe = regexp.MustCompile(`\s+`)

// headingTags are extracted in document order per level.
var headingTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// buildDocument normalizes raw HTML into an ExtractedDocument. The structured
// fields are captured from the full markup before scripts and styles are
// stripped out of the text.
func buildDocument(rawurl, rawHTML string, strategy models.Strategy, opts Options) (*models.ExtractedDocument, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return nil, newFetchError(FetchKindNetwork, rawurl, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, newFetchError(FetchKindNetwork, rawurl, err)
	}

	structured := extractStructured(doc, parsed)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := extractText(rawHTML, parsed, doc)

	if title == "" {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), parsed); err == nil {
			title = strings.TrimSpace(article.Title)
		}
	}

	threshold := opts.LowContentThreshold
	if threshold <= 0 {
		threshold = DefaultLowContentThreshold
	}

	return &models.ExtractedDocument{
		SourceURL:    rawurl,
		StrategyUsed: strategy,
		Title:        title,
		Text:         text,
		Structured:   structured,
		RawHTML:      rawHTML,
		FetchedAt:    time.Now().UTC(),
		ContentHash:  hashContent(text),
		LowContent:   utf8.RuneCountInString(text) < threshold,
	}, nil
}

// extractText produces the clean text body. Readability isolates the main
// content; pages it cannot handle fall back to the full document with
// scripts and styles removed.
func extractText(rawHTML string, parsed *url.URL, doc *goquery.Document) string {
	if article, err := readability.FromReader(strings.NewReader(rawHTML), parsed); err == nil {
		if main, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			main.Find("script, style, noscript").Remove()
			if text := collapseWhitespace(main.Text()); text != "" {
				return text
			}
		}
	}

	stripped := doc.Clone()
	stripped.Find("script, style, noscript").Remove()
	return collapseWhitespace(stripped.Text())
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// hashContent returns the hex SHA-256 digest of the normalized text. Equal
// text always hashes to the same value, which drives chunk identity and
// document sink keys.
func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func extractStructured(doc *goquery.Document, base *url.URL) models.StructuredFields {
	return models.StructuredFields{
		MetaDescription: metaContent(doc, "description"),
		MetaKeywords:    metaContent(doc, "keywords"),
		Headings:        extractHeadings(doc),
		Links:           extractLinks(doc, base),
		Images:          extractImages(doc, base),
		Forms:           extractForms(doc),
		Tables:          extractTables(doc),
		Scripts:         extractScripts(doc),
		Styles:          extractStyles(doc),
	}
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func extractHeadings(doc *goquery.Document) []models.Heading {
	var headings []models.Heading
	for level, tag := range headingTags {
		doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
			headings = append(headings, models.Heading{
				Level: level + 1,
				Text:  strings.TrimSpace(s.Text()),
				ID:    s.AttrOr("id", ""),
				Class: s.AttrOr("class", ""),
			})
		})
	}
	return headings
}

func extractLinks(doc *goquery.Document, base *url.URL) []models.Link {
	var links []models.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		links = append(links, models.Link{
			Text:        strings.TrimSpace(s.Text()),
			Href:        href,
			AbsoluteURL: absoluteURL(base, href),
			Title:       s.AttrOr("title", ""),
			Target:      s.AttrOr("target", ""),
		})
	})
	return links
}

func extractImages(doc *goquery.Document, base *url.URL) []models.Image {
	var images []models.Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if src == "" {
			return
		}
		images = append(images, models.Image{
			Src:         src,
			AbsoluteURL: absoluteURL(base, src),
			Alt:         s.AttrOr("alt", ""),
			Title:       s.AttrOr("title", ""),
			Width:       s.AttrOr("width", ""),
			Height:      s.AttrOr("height", ""),
		})
	})
	return images
}

func extractForms(doc *goquery.Document) []models.Form {
	var forms []models.Form
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		form := models.Form{
			Action: f.AttrOr("action", ""),
			Method: f.AttrOr("method", "get"),
		}
		f.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
			typ := in.AttrOr("type", "")
			if typ == "" {
				typ = goquery.NodeName(in)
			}
			_, required := in.Attr("required")
			form.Inputs = append(form.Inputs, models.FormInput{
				Type:        typ,
				Name:        in.AttrOr("name", ""),
				ID:          in.AttrOr("id", ""),
				Placeholder: in.AttrOr("placeholder", ""),
				Required:    required,
			})
		})
		forms = append(forms, form)
	})
	return forms
}

func extractTables(doc *goquery.Document) []models.Table {
	var tables []models.Table
	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		table := models.Table{
			ID:    t.AttrOr("id", ""),
			Class: t.AttrOr("class", ""),
		}
		t.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			table.Rows = append(table.Rows, row)
		})
		tables = append(tables, table)
	})
	return tables
}

func extractScripts(doc *goquery.Document) []string {
	var scripts []string
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			scripts = append(scripts, src)
		}
	})
	return scripts
}

func extractStyles(doc *goquery.Document) []string {
	var styles []string
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href := s.AttrOr("href", ""); href != "" {
			styles = append(styles, href)
		}
	})
	return styles
}

func absoluteURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	abs, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return abs.String()
}
