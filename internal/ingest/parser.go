package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Statute structure markers. Vietnamese codes nest Chương (chapter) →
// Mục (section, optional) → Điều (article).
var (
	chapterPattern = regexp.MustCompile(`(?im)^Chương\s+([IVX]+|\d+)[.:]?\s*(.*)$`)
	sectionPattern = regexp.MustCompile(`(?im)^Mục\s+(\d+)[.:]?\s*(.*)$`)
	articlePattern = regexp.MustCompile(`(?im)^Điều\s+(\d+)[.:]`)

	headerFooterPattern = regexp.MustCompile(`(?i)^(?:Trang\s*\d+|Page\s*\d+|\d+$|-\s*\d+\s*-$)`)
	articleTitlePattern = regexp.MustCompile(`(?i)^Điều\s+\d+[.:]\s*([^.\n]+?)(?:\.|$|\n)`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// RawArticle is one Điều cut out of the statute text with its position in
// the chapter/section hierarchy.
type RawArticle struct {
	Number       string
	Title        string
	Content      string
	ChapterNum   string
	ChapterTitle string
	SectionNum   string
	SectionTitle string
}

// Article is the JSON interchange form: the searchable text plus the
// hierarchy metadata carried into chunking and indexing.
type Article struct {
	Text     string          `json:"text"`
	Metadata ArticleMetadata `json:"metadata"`
}

// ArticleMetadata keeps every key present so downstream tooling sees
// explicit nulls rather than missing fields.
type ArticleMetadata struct {
	Chapter      *string `json:"chapter"`
	ChapterTitle *string `json:"chapter_title"`
	Section      *string `json:"section"`
	SectionTitle *string `json:"section_title"`
	Article      string  `json:"article"`
	ArticleTitle *string `json:"article_title"`
}

type spanMark struct {
	pos    int
	number string
	title  string
}

// CleanText strips page numbers and header/footer noise and drops blank
// lines. Input is a plain-text export of the statute.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if headerFooterPattern.MatchString(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

// ParseText splits cleaned statute text into articles, attributing each to
// the nearest preceding chapter and section heading.
func ParseText(text string) ([]RawArticle, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ingest: empty statute text")
	}

	chapters := collectMarks(chapterPattern, text)
	sections := collectMarks(sectionPattern, text)

	matches := articlePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		art := RawArticle{Number: "0", Content: cleanArticleContent(text)}
		fillHierarchy(&art, chapters, sections, 0)
		return []RawArticle{art}, nil
	}

	articles := make([]RawArticle, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		content := cleanArticleContent(text[start:end])
		if content == "" {
			continue
		}

		art := RawArticle{
			Number:  text[m[2]:m[3]],
			Content: content,
			Title:   extractArticleTitle(content),
		}
		fillHierarchy(&art, chapters, sections, start)
		articles = append(articles, art)
	}
	return articles, nil
}

// ParseFile reads a statute text file and returns its interchange articles.
func ParseFile(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read statute: %w", err)
	}
	raw, err := ParseText(CleanText(string(data)))
	if err != nil {
		return nil, err
	}
	return FormatArticles(raw), nil
}

// FormatArticles renders raw articles into the interchange form. The text
// leads with the hierarchy so embeddings capture where a rule lives:
// "Chương I: ... Mục 1: ... Điều 2. Tiêu đề. <nội dung>".
func FormatArticles(raw []RawArticle) []Article {
	out := make([]Article, 0, len(raw))
	for _, a := range raw {
		var parts []string

		var chapter, section *string
		if a.ChapterNum != "" {
			c := "Chương " + a.ChapterNum
			chapter = strPtr(c)
			if a.ChapterTitle != "" {
				c += ": " + a.ChapterTitle
			}
			parts = append(parts, c)
		}
		if a.SectionNum != "" {
			s := "Mục " + a.SectionNum
			section = strPtr(s)
			if a.SectionTitle != "" {
				s += ": " + a.SectionTitle
			}
			parts = append(parts, s)
		}

		articleLabel := "Điều " + a.Number
		articleText := articleLabel
		if a.Title != "" {
			articleText += ". " + a.Title
		}
		parts = append(parts, articleText)

		text := strings.Join(parts, ". ") + ". " + a.Content

		out = append(out, Article{
			Text: text,
			Metadata: ArticleMetadata{
				Chapter:      chapter,
				ChapterTitle: nilIfEmpty(a.ChapterTitle),
				Section:      section,
				SectionTitle: nilIfEmpty(a.SectionTitle),
				Article:      articleLabel,
				ArticleTitle: nilIfEmpty(a.Title),
			},
		})
	}
	return out
}

func collectMarks(re *regexp.Regexp, text string) []spanMark {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	marks := make([]spanMark, 0, len(matches))
	for _, m := range matches {
		mark := spanMark{pos: m[0], number: text[m[2]:m[3]]}
		if m[4] >= 0 {
			mark.title = strings.TrimSpace(text[m[4]:m[5]])
		}
		marks = append(marks, mark)
	}
	return marks
}

// fillHierarchy picks the closest heading at or before pos.
func fillHierarchy(art *RawArticle, chapters, sections []spanMark, pos int) {
	for _, c := range chapters {
		if c.pos > pos {
			break
		}
		art.ChapterNum = c.number
		art.ChapterTitle = c.title
	}
	for _, s := range sections {
		if s.pos > pos {
			break
		}
		art.SectionNum = s.number
		art.SectionTitle = s.title
	}
}

func extractArticleTitle(content string) string {
	m := articleTitlePattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(m[1], " "))
}

// cleanArticleContent collapses all whitespace; one article becomes one
// line, which is what the clause chunker expects.
func cleanArticleContent(content string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(content, " "))
}

func strPtr(s string) *string { return &s }

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
