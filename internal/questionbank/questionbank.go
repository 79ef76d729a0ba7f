// Package questionbank holds the read-only catalog of interview questions
// grouped by category.
package questionbank

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultBank []byte

// ErrCategoryNotFound is returned when a category is not part of the bank.
var ErrCategoryNotFound = errors.New("category not found")

// Question is a single interview question with its scoring metadata.
type Question struct {
	Text     string   `yaml:"question" json:"question"`
	Keywords []string `yaml:"keywords" json:"keywords,omitempty"`
	FollowUp string   `yaml:"follow_up" json:"follow_up,omitempty"`
}

// Category groups questions under a unique name.
type Category struct {
	Name      string     `yaml:"name"`
	Questions []Question `yaml:"questions"`
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Bank maps category names to ordered questions. It is immutable after
// construction and safe for concurrent reads.
type Bank struct {
	order      []string
	categories map[string][]Question
}

// New validates the categories and builds a bank from them.
func New(categories []Category) (*Bank, error) {
	if len(categories) == 0 {
		return nil, errors.New("question bank has no categories")
	}

	bank := &Bank{
		order:      make([]string, 0, len(categories)),
		categories: make(map[string][]Question, len(categories)),
	}

	for i, category := range categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if _, exists := bank.categories[name]; exists {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		if len(category.Questions) == 0 {
			return nil, fmt.Errorf("category %q has no questions", name)
		}

		questions := make([]Question, 0, len(category.Questions))
		for j, q := range category.Questions {
			text := strings.TrimSpace(q.Text)
			if text == "" {
				return nil, fmt.Errorf("category %q question %d has no text", name, j)
			}
			questions = append(questions, Question{
				Text:     text,
				Keywords: cleanKeywords(q.Keywords),
				FollowUp: strings.TrimSpace(q.FollowUp),
			})
		}

		bank.order = append(bank.order, name)
		bank.categories[name] = questions
	}

	return bank, nil
}

// Parse decodes a YAML document with a top-level "categories" list.
func Parse(data []byte) (*Bank, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return New(f.Categories)
}

// Load reads a YAML question bank from path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %q: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in bank.
func Default() *Bank {
	bank, err := Parse(defaultBank)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return bank
}

// Categories lists category names in declaration order.
func (b *Bank) Categories() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Has reports whether the category exists.
func (b *Bank) Has(category string) bool {
	_, ok := b.categories[category]
	return ok
}

// QuestionsFor returns a copy of the questions of a category.
func (b *Bank) QuestionsFor(category string) ([]Question, error) {
	questions, ok := b.categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, category)
	}

	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.clone()
	}
	return out, nil
}

// Question returns the question at index i of category, wrapping i around the
// category length.
func (b *Bank) Question(category string, i int) (Question, error) {
	questions, ok := b.categories[category]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", ErrCategoryNotFound, category)
	}
	n := len(questions)
	return questions[((i%n)+n)%n].clone(), nil
}

// Len returns the number of questions in category, or zero when unknown.
func (b *Bank) Len(category string) int {
	return len(b.categories[category])
}

func (q Question) clone() Question {
	if q.Keywords != nil {
		q.Keywords = append([]string(nil), q.Keywords...)
	}
	return q
}

// cleanKeywords trims keywords and drops blanks and case-insensitive repeats,
// keeping the first spelling.
func cleanKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
