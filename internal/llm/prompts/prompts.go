// Package prompts renders the prompt templates sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var embedded embed.FS

var (
	questionTextRegex       = regexp.MustCompile(`(?i)</?\s*question-text\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// maxQuestionRunes bounds the question text placed in a prompt.
const maxQuestionRunes = 4000

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// Data holds template data for both prompts.
type Data struct {
	Question string
	Language string // empty means the model's default (English)
}

// Load parses the templates in fsys. A nil fsys uses the embedded set.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		if fsys == nil {
			fsys = embedded
		}
		templates = make(map[string]*template.Template)
		for _, name := range []string{"simplify", "caption"} {
			file := "templates/" + name + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("failed to read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("failed to parse prompt template %s: %w", file, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

// Simplify builds the hint prompt for question.
func Simplify(question, language string) (string, error) {
	return render("simplify", Data{Question: sanitizeQuestion(question), Language: language})
}

// Caption builds the image description prompt. question may be empty.
func Caption(question, language string) (string, error) {
	q := strings.TrimSpace(question)
	if q != "" {
		q = sanitizeQuestion(q)
	}
	return render("caption", Data{Question: q, Language: language})
}

func render(name string, data Data) (string, error) {
	if err := Load(nil); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := templates[name].Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeQuestion(q string) string {
	q = questionTextRegex.ReplaceAllString(q, "")
	q = systemInstructionsRegex.ReplaceAllString(q, "")
	q = strings.TrimSpace(q)

	if q == "" {
		return "[No question provided]"
	}
	if utf8.RuneCountInString(q) > maxQuestionRunes {
		q = string([]rune(q)[:maxQuestionRunes]) + "\n\n[Question truncated due to length]"
	}
	return q
}
