package models

import "testing"

func TestHasContent(t *testing.T) {
	tests := []struct {
		name string
		doc  *FetchedDocument
		want bool
	}{
		{"nil document", nil, false},
		{"content present", &FetchedDocument{Content: "本文"}, true},
		{"content empty", &FetchedDocument{Title: "t"}, false},
		{"error set", &FetchedDocument{Content: "本文", Error: "fetch failed"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.HasContent(); got != tt.want {
				t.Errorf("HasContent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSourceKind(t *testing.T) {
	for _, k := range AllSources {
		got, ok := ParseSourceKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseSourceKind(%q) = (%q, %v)", k, got, ok)
		}
	}

	if _, ok := ParseSourceKind("confluence"); ok {
		t.Error("unknown kind must not parse")
	}
}
