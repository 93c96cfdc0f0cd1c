package content

import (
	"strings"
	"testing"
)

func TestSegment_ParallelStructures(t *testing.T) {
	raw := []string{
		"Hello there. How are you?",
		"",
		"Second paragraph!",
	}
	b := Segment(raw)

	total := 0
	for _, para := range b.Client {
		total += len(para.Sentences)
	}
	if total != b.Len() {
		t.Fatalf("client sentences = %d, server units = %d, want equal", total, b.Len())
	}

	// Blank paragraphs are dropped entirely.
	if len(b.Client) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(b.Client))
	}

	// IDs run contiguously across paragraphs and match the unit indices.
	id := 0
	for pi, para := range b.Client {
		for si, s := range para.Sentences {
			if s.ID != id {
				t.Errorf("sentence %d/%d has id %d, want %d", pi, si, s.ID, id)
			}
			if s.ParagraphID != pi {
				t.Errorf("sentence %d has paragraph id %d, want %d", s.ID, s.ParagraphID, pi)
			}
			if s.InParagraphID != si {
				t.Errorf("sentence %d has in-paragraph id %d, want %d", s.ID, s.InParagraphID, si)
			}
			if b.Server[id].Index != id {
				t.Errorf("unit %d has index %d", id, b.Server[id].Index)
			}
			id++
		}
	}
}

func TestSegment_ReadabilityFlags(t *testing.T) {
	b := Segment([]string{"Hello.", "...", "World 42!"})

	want := []bool{true, false, true}
	if b.Len() != len(want) {
		t.Fatalf("units = %d, want %d", b.Len(), len(want))
	}
	for i, w := range want {
		if b.Server[i].Readable != w {
			t.Errorf("unit %d (%q) readable = %v, want %v", i, b.Server[i].Text, b.Server[i].Readable, w)
		}
	}
}

func TestSegment_ShortParagraphStaysWhole(t *testing.T) {
	b := Segment([]string{"Mr. Smith waved."})
	if b.Len() != 1 {
		t.Fatalf("units = %d, want 1 (short paragraphs are not split)", b.Len())
	}
}

func TestSegment_LongParagraphSplits(t *testing.T) {
	para := "The rain kept falling over the quiet town for hours on end. " +
		"Nobody remembered a storm like this one! Was it ever going to stop?"
	b := Segment([]string{para})

	if b.Len() < 3 {
		t.Fatalf("units = %d, want at least 3", b.Len())
	}
	rejoined := ""
	for _, u := range b.Server {
		rejoined += u.Text + " "
	}
	for _, frag := range []string{"quiet town", "storm like this one", "going to stop"} {
		if !strings.Contains(rejoined, frag) {
			t.Errorf("rejoined text lost fragment %q", frag)
		}
	}
}

func TestSegment_Empty(t *testing.T) {
	if got := Segment(nil).Len(); got != 0 {
		t.Errorf("Segment(nil).Len() = %d, want 0", got)
	}
	if got := Segment([]string{"", "   "}).Len(); got != 0 {
		t.Errorf("blank-only input produced %d units, want 0", got)
	}
}

func TestIsReadable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Hello.", true},
		{"42", true},
		{"ñandú", true},
		{"...", false},
		{"—", false},
		{"!?", false},
		{"a", false},
		{"", false},
		{"  ", false},
		{"(ok)", true},
	}
	for _, tc := range tests {
		if got := IsReadable(tc.text); got != tc.want {
			t.Errorf("IsReadable(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and collapses spaces", "  hello   world  ", "hello world"},
		{"normalizes brackets", "«quote» and 「note」", "(quote) and (note)"},
		{"em dash to hyphen", "wait—now", "wait-now"},
		{"caps repeated letters", "noooooo", "nooo"},
		{"caps long ellipsis", "wait......", "wait..."},
		{"repeat cap spares brackets", "wow ((((nested))))", "wow ((((nested))))"},
		{"repeat cap spares punctuation", "what????", "what????"},
		{"ellipsis glued to word", "well...done", "welldone"},
		{"tilde runs become ellipsis", "hmm~~~", "hmm..."},
		{"strips disallowed symbols", "a@b^c", "a b c"},
		{"keeps sentence punctuation", "¿Qué? ¡Sí!", "¿Qué? ¡Sí!"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
