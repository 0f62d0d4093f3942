package ingest

import (
	"strings"
	"testing"
)

const statuteFixture = `BỘ LUẬT LAO ĐỘNG
Chương I
NHỮNG QUY ĐỊNH CHUNG
Điều 1. Phạm vi điều chỉnh
Bộ luật Lao động quy định tiêu chuẩn lao động; quyền, nghĩa vụ, trách nhiệm của người lao động và người sử dụng lao động.
Điều 3. Giải thích từ ngữ
Trong Bộ luật này, các từ ngữ dưới đây được hiểu như sau:
1. Người lao động là người làm việc cho người sử dụng lao động theo thỏa thuận, được trả lương và chịu sự quản lý, điều hành của người sử dụng lao động.
2. Người sử dụng lao động là doanh nghiệp, cơ quan, tổ chức, hợp tác xã, hộ gia đình, cá nhân có thuê mướn, sử dụng người lao động.
7
Chương III
HỢP ĐỒNG LAO ĐỘNG
Mục 1. GIAO KẾT HỢP ĐỒNG LAO ĐỘNG
Điều 24. Thử việc
1. Người sử dụng lao động và người lao động có thể thỏa thuận nội dung thử việc ghi trong hợp đồng lao động.
2. Không áp dụng thử việc đối với người lao động giao kết hợp đồng lao động có thời hạn dưới 01 tháng.
Trang 12
`

func TestCleanTextDropsPageNoise(t *testing.T) {
	cleaned := CleanText(statuteFixture)

	if strings.Contains(cleaned, "Trang 12") {
		t.Errorf("footer survived cleaning")
	}
	for _, line := range strings.Split(cleaned, "\n") {
		if line == "7" {
			t.Errorf("page number survived cleaning")
		}
		if strings.TrimSpace(line) == "" {
			t.Errorf("blank line survived cleaning")
		}
	}
	if !strings.Contains(cleaned, "Điều 24. Thử việc") {
		t.Errorf("statute content lost in cleaning")
	}
}

func TestParseTextSplitsArticles(t *testing.T) {
	articles, err := ParseText(CleanText(statuteFixture))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.Number != "1" {
		t.Errorf("article number = %q", first.Number)
	}
	// Titles run to the first period, so a clause-less article swallows its
	// first sentence. Articles with clauses stop at the clause marker.
	if !strings.HasPrefix(first.Title, "Phạm vi điều chỉnh") {
		t.Errorf("article 1 title = %q", first.Title)
	}
	if first.ChapterNum != "I" || first.ChapterTitle != "NHỮNG QUY ĐỊNH CHUNG" {
		t.Errorf("article 1 chapter = %q/%q", first.ChapterNum, first.ChapterTitle)
	}
	if first.SectionNum != "" {
		t.Errorf("article 1 should have no section, got %q", first.SectionNum)
	}

	last := articles[2]
	if last.Number != "24" {
		t.Errorf("article number = %q", last.Number)
	}
	// The first clause marker bounds the title; the chunker strips the
	// trailing clause number when building chunk metadata.
	if last.Title != "Thử việc 1" {
		t.Errorf("article 24 title = %q", last.Title)
	}
	if last.ChapterNum != "III" {
		t.Errorf("chapter = %q", last.ChapterNum)
	}
	if last.SectionNum != "1" || last.SectionTitle != "GIAO KẾT HỢP ĐỒNG LAO ĐỘNG" {
		t.Errorf("section = %q/%q", last.SectionNum, last.SectionTitle)
	}
	if strings.Contains(last.Content, "\n") {
		t.Errorf("article content should be whitespace-collapsed")
	}
	if !strings.Contains(last.Content, "Không áp dụng thử việc") {
		t.Errorf("clause 2 missing from article content")
	}
}

func TestParseTextWithoutArticlesKeepsWholeText(t *testing.T) {
	articles, err := ParseText("Văn bản này không có cấu trúc điều khoản nào cả.")
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Number != "0" {
		t.Errorf("number = %q", articles[0].Number)
	}
}

func TestParseTextEmpty(t *testing.T) {
	if _, err := ParseText("   \n  "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestFormatArticlesInterchangeShape(t *testing.T) {
	raw, err := ParseText(CleanText(statuteFixture))
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	articles := FormatArticles(raw)
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}

	probation := articles[2]
	md := probation.Metadata
	if md.Article != "Điều 24" {
		t.Errorf("article = %q", md.Article)
	}
	if md.Chapter == nil || *md.Chapter != "Chương III" {
		t.Errorf("chapter = %v", md.Chapter)
	}
	if md.ChapterTitle == nil || *md.ChapterTitle != "HỢP ĐỒNG LAO ĐỘNG" {
		t.Errorf("chapter_title = %v", md.ChapterTitle)
	}
	if md.Section == nil || *md.Section != "Mục 1" {
		t.Errorf("section = %v", md.Section)
	}

	// Hierarchy leads the text so an embedding knows where the rule lives.
	wantPrefix := "Chương III: HỢP ĐỒNG LAO ĐỘNG. Mục 1: GIAO KẾT HỢP ĐỒNG LAO ĐỘNG. Điều 24. Thử việc"
	if !strings.HasPrefix(probation.Text, wantPrefix) {
		t.Errorf("text prefix = %q", firstRunes(probation.Text, 100))
	}

	general := articles[0]
	if general.Metadata.Section != nil {
		t.Errorf("article outside any Mục must have null section")
	}
}
