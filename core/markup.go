package core

import (
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// HasMarkup reports whether text contains markdown formatting. It decides the
// default value of the X-Markdown header on outgoing notifications; callers can
// override the verdict with an explicit request value.
//
// Detection is two-stage. First the text is parsed with goldmark in its default
// CommonMark mode (no extensions) and the resulting tree is inspected for
// structural or inline constructs. If that stage sees nothing, a fixed set of
// markdown patterns is matched against the raw text. Raw URLs are not markup:
// goldmark does not autolink without the linkify extension, and none of the
// fallback patterns target bare URLs.
func HasMarkup(text string) bool {
	if structuralMarkup(text) {
		return true
	}
	return patternMarkup(text)
}

// structuralMarkup parses text and inspects the document tree.
//
// More than one block-level child means multiple constructs (paragraph breaks,
// heading plus body, etc.). A single non-paragraph block is a heading, list,
// blockquote, code block or thematic break. A single paragraph is formatted
// only if any of its inline children is not plain text.
//
// A parser panic must not reach the caller; it downgrades this stage to
// "nothing found" so the pattern stage still runs.
func structuralMarkup(text string) (formatted bool) {
	defer func() {
		if r := recover(); r != nil {
			formatted = false
		}
	}()

	root := goldmark.New().Parser().Parse(gmtext.NewReader([]byte(text)))

	blocks := 0
	for child := root.FirstChild(); child != nil; child = child.NextSibling() {
		blocks++
	}
	if blocks == 0 {
		return false
	}
	if blocks > 1 {
		return true
	}

	only := root.FirstChild()
	if only.Kind() != ast.KindParagraph {
		return true
	}
	for inline := only.FirstChild(); inline != nil; inline = inline.NextSibling() {
		if inline.Kind() != ast.KindText {
			return true
		}
	}
	return false
}

// markupPatterns is the fallback set for constructs the structural stage can
// miss. Order mirrors the inline-emphasis, block, then table/rule grouping;
// a match on any pattern is enough.
var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\*\*[^*]+\*\*`),        // bold
	regexp.MustCompile(`\*[^*]+\*`),            // italic
	regexp.MustCompile(`__[^_]+__`),            // bold
	regexp.MustCompile(`_[^_]+_`),              // italic
	regexp.MustCompile(`~~[^~]+~~`),            // strikethrough
	regexp.MustCompile(`(?m)^#+\s+.+`),         // heading
	regexp.MustCompile(`(?m)^\s*[-*+]\s+.+`),   // unordered list item
	regexp.MustCompile(`(?m)^\s*\d+\.\s+.+`),   // ordered list item
	regexp.MustCompile(`(?m)^\s*>.+`),          // blockquote
	regexp.MustCompile("`[^`]+`"),              // inline code
	regexp.MustCompile("(?s)```.*?```"),        // fenced code block
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),  // link
	regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`), // image
	regexp.MustCompile(`(?m)^.*\|.*\|.*$`),     // table row
	regexp.MustCompile(`(?m)^-{3,}\s*$`),       // horizontal rule
}

func patternMarkup(text string) bool {
	if text == "" {
		return false
	}
	for _, pattern := range markupPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
