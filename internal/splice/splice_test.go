package splice

import (
	"errors"
	"strings"
	"testing"
)

// ReplaceBetween

func TestReplaceBetween_Scenario(t *testing.T) {
	got, err := ReplaceBetween("A<!--S-->B<!--E-->C", "<!--S-->", "<!--E-->", "X")
	if err != nil {
		t.Fatalf("ReplaceBetween: %v", err)
	}
	if got != "AX<!--E-->C" {
		t.Fatalf("got %q, want %q", got, "AX<!--E-->C")
	}
}

func TestReplaceBetween_PrefixReplacementSuffix(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		start, end  string
		replacement string
	}{
		{"adjacent markers", "head<s><e>tail", "<s>", "<e>", "NEW"},
		{"markers at edges", "<s>middle<e>", "<s>", "<e>", ""},
		{"multiline", "line1\n  <!-- a -->\n  old\n  <!-- b -->\nline5\n", "<!-- a -->", "<!-- b -->", "<!-- a2 -->\n  new\n  "},
		{"unicode content", "héllo <s>ünïcödé<e> wörld", "<s>", "<e>", "→"},
		{"repeated markers uses first", "x<s>1<e>2<s>3<e>y", "<s>", "<e>", "R"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReplaceBetween(tt.text, tt.start, tt.end, tt.replacement)
			if err != nil {
				t.Fatalf("ReplaceBetween: %v", err)
			}
			si := strings.Index(tt.text, tt.start)
			ei := strings.Index(tt.text, tt.end)
			want := tt.text[:si] + tt.replacement + tt.text[ei:]
			if got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
		})
	}
}

func TestReplaceBetween_DropsStartKeepsEnd(t *testing.T) {
	got, err := ReplaceBetween("a<S>b<E>c", "<S>", "<E>", "-")
	if err != nil {
		t.Fatalf("ReplaceBetween: %v", err)
	}
	if strings.Contains(got, "<S>") {
		t.Fatalf("start marker should be dropped, got %q", got)
	}
	if !strings.HasPrefix(got[strings.Index(got, "-")+1:], "<E>") {
		t.Fatalf("end marker should open the suffix, got %q", got)
	}
}

func TestReplaceBetween_SecondRunFails(t *testing.T) {
	first, err := ReplaceBetween("A<!--S-->B<!--E-->C", "<!--S-->", "<!--E-->", "X")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err = ReplaceBetween(first, "<!--S-->", "<!--E-->", "X")
	if !errors.Is(err, ErrMarkersNotFound) {
		t.Fatalf("second run err = %v, want ErrMarkersNotFound", err)
	}
}

func TestReplaceBetween_MissingMarkers(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStart int
		wantEnd   int
	}{
		{"start missing", "A B<!--E-->C", -1, 3},
		{"end missing", "A<!--S-->B C", 1, -1},
		{"both missing", "plain text", -1, -1},
		{"empty text", "", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ReplaceBetween(tt.text, "<!--S-->", "<!--E-->", "X")
			if out != "" {
				t.Fatalf("output = %q, want empty on error", out)
			}
			if !errors.Is(err, ErrMarkersNotFound) {
				t.Fatalf("err = %v, want ErrMarkersNotFound", err)
			}
			var mnf *MarkersNotFoundError
			if !errors.As(err, &mnf) {
				t.Fatalf("err type = %T, want *MarkersNotFoundError", err)
			}
			if mnf.StartIndex != tt.wantStart || mnf.EndIndex != tt.wantEnd {
				t.Fatalf("indices = (%d,%d), want (%d,%d)", mnf.StartIndex, mnf.EndIndex, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReplaceBetween_MessageDoesNotNameMarker(t *testing.T) {
	_, errStart := ReplaceBetween("<!--E-->", "<!--S-->", "<!--E-->", "")
	_, errEnd := ReplaceBetween("<!--S-->", "<!--S-->", "<!--E-->", "")
	if errStart.Error() != errEnd.Error() {
		t.Fatalf("messages differ: %q vs %q", errStart.Error(), errEnd.Error())
	}
}

func TestReplaceBetween_CaseSensitive(t *testing.T) {
	_, err := ReplaceBetween("a<!--s-->b<!--E-->", "<!--S-->", "<!--E-->", "")
	if !errors.Is(err, ErrMarkersNotFound) {
		t.Fatalf("err = %v, want ErrMarkersNotFound", err)
	}
}

func TestReplaceBetween_RegexMetacharsAreLiteral(t *testing.T) {
	got, err := ReplaceBetween("x(.*)y[+]z", "(.*)", "[+]", "_")
	if err != nil {
		t.Fatalf("ReplaceBetween: %v", err)
	}
	if got != "x_[+]z" {
		t.Fatalf("got %q", got)
	}
}

func TestReplaceBetween_EmptyMarker(t *testing.T) {
	for _, m := range []Markers{{"", "<e>"}, {"<s>", ""}, {"", ""}} {
		_, err := ReplaceBetween("<s><e>", m.Start, m.End, "")
		if !errors.Is(err, ErrEmptyMarker) {
			t.Fatalf("markers %+v: err = %v, want ErrEmptyMarker", m, err)
		}
	}
}

// out-of-order markers follow the literal prefix/suffix formula

func TestReplaceBetween_EndBeforeStart(t *testing.T) {
	got, err := ReplaceBetween("a<E>b<S>c", "<S>", "<E>", "X")
	if err != nil {
		t.Fatalf("ReplaceBetween: %v", err)
	}
	if want := "a<E>bX<E>b<S>c"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Locate

func TestLocate_Offsets(t *testing.T) {
	sp, err := Locate("..<s>..<e>", Markers{Start: "<s>", End: "<e>"})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if sp.Start != 2 || sp.End != 7 {
		t.Fatalf("span = %+v, want {2 7}", sp)
	}
	if !sp.Ordered() {
		t.Fatal("span should be ordered")
	}
}

func TestSpan_Ordered(t *testing.T) {
	if !(Span{Start: 3, End: 3}).Ordered() {
		t.Fatal("equal offsets should be ordered")
	}
	if (Span{Start: 4, End: 3}).Ordered() {
		t.Fatal("end before start should not be ordered")
	}
}
