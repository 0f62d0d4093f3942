package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Clause markers: "1. ", "2: ". Sub-items inside a clause look like
// "a) ... b) ... c) ...".
var (
	clausePattern     = regexp.MustCompile(`\b(\d+)[.:]\s+`)
	subItemPattern    = regexp.MustCompile(`(?i)[a-zđ]\s*\)`)
	clauseLeadPattern = regexp.MustCompile(`^\d+[.:]\s+`)
	headerEchoPattern = regexp.MustCompile(`^Điều\s+\d`)
	trailingNumber    = regexp.MustCompile(`\s+\d+$`)
	dotRun            = regexp.MustCompile(`\.{2,}`)
	spaceBeforeDot    = regexp.MustCompile(`\s+\.`)
)

// Chunk is one indexable unit: either a whole article or a single clause
// prefixed with its place in the code.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata drives retrieval filters and answer citations.
type ChunkMetadata struct {
	ArticleID    string  `json:"article_id"`
	ArticleTitle *string `json:"article_title"`
	ClauseID     *string `json:"clause_id"`
	Topic        string  `json:"topic,omitempty"`
	ContentType  string  `json:"content_type,omitempty"`
	Chapter      string  `json:"chapter,omitempty"`
	ChapterTitle *string `json:"chapter_title,omitempty"`
	Section      string  `json:"section,omitempty"`
	SectionTitle *string `json:"section_title,omitempty"`
}

type clause struct {
	number int
	start  int
	text   string
}

// ChunkArticle splits one article into clause chunks, or keeps it whole
// when it has no clause structure or only a single clause (splitting a
// lone clause from its a/b/c list loses context).
func ChunkArticle(article Article) []Chunk {
	clauses := extractClauses(article.Text)

	if !shouldSplit(clauses) {
		return []Chunk{buildChunk(article, nil)}
	}

	chunks := make([]Chunk, 0, len(clauses))
	for i := range clauses {
		chunks = append(chunks, buildChunk(article, &clauses[i]))
	}
	return chunks
}

// ChunkAll chunks every article in document order.
func ChunkAll(articles []Article) []Chunk {
	var chunks []Chunk
	for _, a := range articles {
		chunks = append(chunks, ChunkArticle(a)...)
	}
	return chunks
}

// extractClauses finds clause boundaries. Plain "N. " runs are everywhere
// in legal prose (dates, cross references, enumerations inside sentences),
// so a candidate only counts when it is not the number of a "Điều/Chương/
// Mục/Khoản" label, its number is a plausible clause index (≤ 20), and an
// uppercase word follows.
func extractClauses(content string) []clause {
	matches := clausePattern.FindAllStringSubmatchIndex(content, -1)

	candidates := make([]clause, 0, len(matches))
	for _, m := range matches {
		pos := m[0]
		number, err := strconv.Atoi(content[m[2]:m[3]])
		if err != nil || number > 20 {
			continue
		}

		before := strings.ToLower(lastRunes(content[:pos], 15))
		if strings.Contains(before, "điều") || strings.Contains(before, "chương") ||
			strings.Contains(before, "mục") || strings.Contains(before, "khoản") {
			continue
		}

		after := firstRunes(content[pos:], 50)
		rest := strings.TrimSpace(content[m[1]:min(len(content), pos+len(after))])
		if utf8.RuneCountInString(strings.TrimSpace(firstRunes(after, 20))) < 5 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(first) {
			continue
		}

		// The interchange text repeats the article header after the title,
		// so a title ending in a clause number puts an "Điều N" right after
		// a marker. That echo is not a clause.
		if headerEchoPattern.MatchString(rest) {
			continue
		}

		candidates = append(candidates, clause{number: number, start: pos})
	}

	valid := make([]clause, 0, len(candidates))
	for i, c := range candidates {
		end := len(content)
		if i+1 < len(candidates) {
			end = candidates[i+1].start
		}
		text := strings.TrimSpace(content[c.start:end])
		if utf8.RuneCountInString(text) < 20 {
			continue
		}
		c.text = text
		valid = append(valid, c)
	}
	return valid
}

// shouldSplit keeps single-clause articles whole; an a/b/c list belongs
// with its lead-in sentence.
func shouldSplit(clauses []clause) bool {
	return len(clauses) > 1
}

func countSubItems(text string) int {
	return len(subItemPattern.FindAllStringIndex(text, -1))
}

// Topic keyword table from statute drafting conventions: articles open
// clauses with stock phrases ("có các quyền sau đây", "có trách nhiệm...").
var topicPatterns = []struct {
	needle string
	topic  string
}{
	{"có các quyền", "Quyền"},
	{"các quyền", "Quyền"},
	{"quyền của", "Quyền"},
	{"có các nghĩa vụ", "Nghĩa vụ"},
	{"các nghĩa vụ", "Nghĩa vụ"},
	{"nghĩa vụ của", "Nghĩa vụ"},
	{"có trách nhiệm", "Trách nhiệm"},
	{"trách nhiệm của", "Trách nhiệm"},
	{"nguyên tắc", "Nguyên tắc"},
	{"hình thức", "Hình thức"},
	{"thời hạn", "Thời hạn"},
	{"điều kiện", "Điều kiện"},
	{"nội dung", "Nội dung"},
	{"phạm vi", "Phạm vi"},
}

func extractClauseTopic(clauseText string) string {
	lowered := strings.ToLower(firstRunes(clauseText, 200))
	firstPart := []rune(lowered)

	for _, tp := range topicPatterns {
		idx := strings.Index(lowered, tp.needle)
		if idx < 0 {
			continue
		}
		// The context window counts runes, not bytes.
		at := utf8.RuneCountInString(lowered[:idx])
		start := at - 30
		if start < 0 {
			start = 0
		}
		end := at + utf8.RuneCountInString(tp.needle) + 30
		if end > len(firstPart) {
			end = len(firstPart)
		}
		context := string(firstPart[start:end])

		if strings.Contains(context, "người lao động") {
			return tp.topic + " của người lao động"
		}
		if strings.Contains(context, "người sử dụng lao động") {
			return tp.topic + " của người sử dụng lao động"
		}
		return tp.topic
	}
	return ""
}

func determineContentType(clauseText string) string {
	if countSubItems(clauseText) >= 3 {
		return "list_requirement"
	}
	lower := strings.ToLower(clauseText)
	if strings.Contains(lower, "được hiểu") || strings.Contains(firstRunes(lower, 50), "là") {
		return "definition"
	}
	return "regulation"
}

// buildChunk renders a chunk. A nil clause keeps the whole article text;
// a clause chunk is rebuilt as "Bộ luật Lao động. Chương ... Điều N.
// Tiêu đề. Khoản K. <nội dung>" so every chunk is self-locating.
func buildChunk(article Article, cl *clause) Chunk {
	md := article.Metadata

	articleID := "Dieu_" + strings.TrimPrefix(md.Article, "Điều ")

	var articleTitle *string
	if md.ArticleTitle != nil {
		clean := trailingNumber.ReplaceAllString(*md.ArticleTitle, "")
		articleTitle = &clean
	}

	var clauseID *string
	var text string

	if cl == nil {
		text = article.Text
	} else {
		id := "Khoan_" + strconv.Itoa(cl.number)
		clauseID = &id

		parts := []string{"Bộ luật Lao động"}
		if md.Chapter != nil {
			chapter := *md.Chapter
			if md.ChapterTitle != nil && *md.ChapterTitle != "" {
				chapter += ": " + *md.ChapterTitle
			}
			parts = append(parts, chapter)
		}
		if md.Section != nil {
			section := *md.Section
			if md.SectionTitle != nil && *md.SectionTitle != "" {
				section += ": " + *md.SectionTitle
			}
			parts = append(parts, section)
		}

		articleText := md.Article
		if articleTitle != nil && *articleTitle != "" {
			articleText += ". " + *articleTitle
		}
		parts = append(parts, articleText)

		parts = append(parts, "Khoản "+strconv.Itoa(cl.number)+".")
		body := strings.TrimSpace(clauseLeadPattern.ReplaceAllString(cl.text, ""))
		if body != "" {
			parts = append(parts, body)
		}

		text = strings.Join(parts, ". ")
		text = dotRun.ReplaceAllString(text, ".")
		text = spaceBeforeDot.ReplaceAllString(text, ".")
	}

	meta := ChunkMetadata{
		ArticleID:    articleID,
		ArticleTitle: articleTitle,
		ClauseID:     clauseID,
	}
	if cl != nil {
		meta.Topic = extractClauseTopic(cl.text)
		meta.ContentType = determineContentType(cl.text)
	}
	if md.Chapter != nil {
		meta.Chapter = *md.Chapter
		meta.ChapterTitle = md.ChapterTitle
	}
	if md.Section != nil {
		meta.Section = *md.Section
		meta.SectionTitle = md.SectionTitle
	}

	return Chunk{Text: text, Metadata: meta}
}

// lastRunes returns the final n runes of s.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	idx := len(s)
	for idx > 0 && count < n {
		_, size := utf8.DecodeLastRuneInString(s[:idx])
		idx -= size
		count++
	}
	return s[idx:]
}

// firstRunes returns the leading n runes of s.
func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for idx := range s {
		if count == n {
			return s[:idx]
		}
		count++
	}
	return s
}
