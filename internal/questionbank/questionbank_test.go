package questionbank

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultBank(t *testing.T) {
	t.Parallel()

	bank := Default()
	categories := bank.Categories()

	expected := []string{
		"Technical", "Behavioral", "System Design", "Business", "Marketing", "Finance",
		"Design", "Healthcare", "Education", "Legal", "Fashion", "Media",
	}
	if len(categories) != len(expected) {
		t.Fatalf("expected %d categories, got %d", len(expected), len(categories))
	}
	for i, name := range expected {
		if categories[i] != name {
			t.Fatalf("category %d: expected %q, got %q", i, name, categories[i])
		}
		if bank.Len(name) != 5 {
			t.Fatalf("category %q: expected 5 questions, got %d", name, bank.Len(name))
		}
	}

	questions, err := bank.QuestionsFor("Technical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := questions[0]
	if !strings.HasPrefix(first.Text, "Explain the concept of object-oriented programming") {
		t.Fatalf("unexpected first question %q", first.Text)
	}
	if strings.Join(first.Keywords, ",") != "encapsulation,inheritance,polymorphism,abstraction" {
		t.Fatalf("unexpected keywords %v", first.Keywords)
	}
}

func TestQuestionsForUnknownCategory(t *testing.T) {
	t.Parallel()

	_, err := Default().QuestionsFor("Astrology")
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestQuestionsForReturnsCopy(t *testing.T) {
	t.Parallel()

	bank := Default()
	questions, _ := bank.QuestionsFor("Technical")
	questions[0].Text = "mutated"
	questions[0].Keywords[0] = "mutated"

	again, _ := bank.QuestionsFor("Technical")
	if again[0].Text == "mutated" || again[0].Keywords[0] == "mutated" {
		t.Fatalf("bank was mutated through returned slice")
	}
}

func TestQuestionWrapsAround(t *testing.T) {
	t.Parallel()

	bank := Default()
	first, _ := bank.Question("Behavioral", 0)
	wrapped, err := bank.Question("Behavioral", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Text != wrapped.Text {
		t.Fatalf("expected index 5 to wrap to index 0")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	q := []Question{{Text: "Why?"}}
	tests := []struct {
		name       string
		categories []Category
		expect     string
	}{
		{name: "empty", categories: nil, expect: "no categories"},
		{name: "missing name", categories: []Category{{Questions: q}}, expect: "has no name"},
		{name: "duplicate", categories: []Category{{Name: "A", Questions: q}, {Name: "A", Questions: q}}, expect: "duplicate category"},
		{name: "no questions", categories: []Category{{Name: "A"}}, expect: "has no questions"},
		{name: "blank question", categories: []Category{{Name: "A", Questions: []Question{{Text: "  "}}}}, expect: "has no text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.categories)
			if err == nil || !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error containing %q, got %v", tt.expect, err)
			}
		})
	}
}

func TestNewDedupesKeywords(t *testing.T) {
	t.Parallel()

	bank, err := New([]Category{{
		Name: "Go",
		Questions: []Question{{
			Text:     "How do goroutines communicate?",
			Keywords: []string{"Channel", "mutex", " channel ", "CHANNEL", "Mutex", "select"},
		}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := bank.Question("Go", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Channel", "mutex", "select"}
	if strings.Join(q.Keywords, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, q.Keywords)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bank.yaml")
	doc := `categories:
  - name: Go
    questions:
      - question: " What does a nil map do on write? "
        keywords: ["panic", "  ", "make"]
        follow_up: How do you avoid it?
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}

	bank, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := bank.Question("Go", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "What does a nil map do on write?" {
		t.Fatalf("expected trimmed text, got %q", q.Text)
	}
	if len(q.Keywords) != 2 {
		t.Fatalf("expected blank keyword to be dropped, got %v", q.Keywords)
	}
	if q.FollowUp != "How do you avoid it?" {
		t.Fatalf("unexpected follow up %q", q.FollowUp)
	}
}
