// Package content turns raw paragraphs into the two parallel structures the
// player works with: a flat server-side sequence of speakable units and a
// client-side paragraph/sentence tree used for display and highlighting.
//
// Segment is a pure function: same input, same output, no side effects. Both
// sequences are derived from the raw paragraphs in a single pass and always
// have the same total sentence count; a unit's Index is the cumulative
// sentence count across the whole batch, not the offset within its paragraph.
package content

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unit is one sentence-level item of the server-side sequence. Text is the
// sanitized form handed to the synthesizer; Audio is attached lazily by the
// player's prefetch and is nil until synthesis succeeds.
type Unit struct {
	Index    int
	Text     string
	Readable bool
	Audio    []byte
}

// Sentence is one display sentence of the client-side structure. ID is the
// batch-wide sentence index and matches the Index of the corresponding Unit.
type Sentence struct {
	ID            int    `json:"id"`
	ParagraphID   int    `json:"paragraphId"`
	InParagraphID int    `json:"inParagraphId"`
	Text          string `json:"sentence"`
}

// Paragraph groups the display sentences of one accepted raw paragraph.
type Paragraph struct {
	ID        int        `json:"id"`
	Sentences []Sentence `json:"sentences"`
}

// Batch is the result of segmenting one content submission or provider page.
type Batch struct {
	Server []Unit
	Client []Paragraph
}

// Len returns the number of units in the server-side sequence.
func (b *Batch) Len() int { return len(b.Server) }

// shortParagraph is the rune length below which a paragraph is kept as a
// single sentence instead of being split on sentence boundaries. Short lines
// are usually chapter titles or interjections that read better unsplit.
const shortParagraph = 60

var (
	sentenceRe     = regexp.MustCompile(`[^.!?]*[.!?]+["')\]]*\s*|[^.!?]+$`)
	openBracketRe  = regexp.MustCompile(`[\[«「『<]`)
	closeBracketRe = regexp.MustCompile(`[\]»」』>]`)
	emDashRe       = regexp.MustCompile(`—`)
	ellipsisWordRe = regexp.MustCompile(`\.\.\.([\p{L}\p{N}])`)
	disallowedRe   = regexp.MustCompile(`[^\p{L}\p{N}()/ ,.¡!¿?\-_#$%&=+~"']`)
	tildeRunRe     = regexp.MustCompile(`~+`)
	spaceRunRe     = regexp.MustCompile(`\s+`)
)

// Segment processes raw paragraphs into a Batch. Paragraphs that are empty or
// whitespace-only are dropped before segmentation; dropping changes the
// accepted length but never reorders content.
func Segment(raw []string) *Batch {
	b := &Batch{}

	paragraphID := 0
	sentenceID := 0

	for _, paragraph := range raw {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}

		p := Paragraph{ID: paragraphID}
		inParagraph := 0

		for _, sentence := range splitSentences(paragraph) {
			p.Sentences = append(p.Sentences, Sentence{
				ID:            sentenceID,
				ParagraphID:   paragraphID,
				InParagraphID: inParagraph,
				Text:          sentence,
			})
			b.Server = append(b.Server, Unit{
				Index:    sentenceID,
				Text:     Sanitize(sentence),
				Readable: IsReadable(sentence),
			})
			inParagraph++
			sentenceID++
		}

		b.Client = append(b.Client, p)
		paragraphID++
	}

	return b
}

// splitSentences breaks a paragraph into sentences. Paragraphs shorter than
// shortParagraph runes are treated as a single sentence.
func splitSentences(paragraph string) []string {
	trimmed := strings.TrimSpace(paragraph)
	if utf8.RuneCountInString(trimmed) < shortParagraph {
		return []string{trimmed}
	}

	matches := sentenceRe.FindAllString(trimmed, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return []string{trimmed}
	}
	return sentences
}

// IsReadable reports whether text is worth sending to the synthesizer. Empty
// text, a bare ellipsis, and text without any alphanumeric content are all
// unreadable; anything longer than one rune with at least one alphanumeric
// rune is readable.
func IsReadable(text string) bool {
	if utf8.RuneCountInString(text) <= 1 {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Sanitize normalizes a sentence for speech synthesis: whitespace is
// collapsed, bracket-like characters become plain parentheses, runs of four
// or more repeated characters shrink to three, and anything outside the
// speakable allow-list is replaced by a space.
func Sanitize(text string) string {
	s := strings.TrimSpace(text)
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = openBracketRe.ReplaceAllString(s, "(")
	s = closeBracketRe.ReplaceAllString(s, ")")
	s = emDashRe.ReplaceAllString(s, "-")
	s = collapseRepeats(s)
	// "...word" reads as a stutter; drop the leading ellipsis.
	s = ellipsisWordRe.ReplaceAllString(s, "$1")
	s = disallowedRe.ReplaceAllString(s, " ")
	s = tildeRunRe.ReplaceAllString(s, "...")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// collapseRepeats caps runs of the same word character, dot, asterisk or
// dash at three occurrences; other runes pass through untouched. RE2 has no
// backreferences, so this is done with a plain scan.
func collapseRepeats(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	var last rune = -1
	run := 0
	for _, r := range s {
		if r == last {
			run++
		} else {
			last = r
			run = 1
		}
		if run <= 3 || !collapsible(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func collapsible(r rune) bool {
	switch r {
	case '.', '*', '-', '—', '_':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
