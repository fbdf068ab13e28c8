package profile

import (
	"strings"
	"testing"
)

func TestFormatForPromptMapsCodesToLabels(t *testing.T) {
	p := UserProfile{
		Nickname:   "はな",
		Gender:     "female",
		Age:        "twenties",
		Occupation: "engineer",
		Interests:  []string{"reading", "travel"},
	}

	got := p.FormatForPrompt()
	for _, want := range []string{
		"ニックネーム: はな",
		"性別: 女性",
		"年齢: 20代",
		"職業: エンジニア",
		"興味・関心: 読書、旅行",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatForPromptOmitsWithheldAndEmpty(t *testing.T) {
	p := UserProfile{
		Nickname: "はな",
		Gender:   PreferNotToSay,
		Age:      "",
	}

	got := p.FormatForPrompt()
	if got != "ニックネーム: はな" {
		t.Fatalf("expected nickname only, got %q", got)
	}
}

func TestFormatForPromptUnknownCodeFallsBack(t *testing.T) {
	p := UserProfile{Nickname: "はな", Occupation: "astronaut"}

	if got := p.FormatForPrompt(); !strings.Contains(got, "職業: astronaut") {
		t.Fatalf("expected raw code fallback, got %q", got)
	}
}

func TestUpdateApplyLeavesNilFieldsUntouched(t *testing.T) {
	base := UserProfile{Nickname: "はな", Age: "twenties", Interests: []string{"reading"}}

	age := "thirties"
	merged := Update{Age: &age}.Apply(base)

	if merged.Age != "thirties" {
		t.Fatalf("age not applied: %+v", merged)
	}
	if merged.Nickname != "はな" || len(merged.Interests) != 1 {
		t.Fatalf("nil fields changed: %+v", merged)
	}
}
