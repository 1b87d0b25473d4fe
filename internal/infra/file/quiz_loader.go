package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"quizflow/internal/domain"
)

var (
	extensions = []string{".yaml", ".yml", ".json"}
	validID    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// QuizLoader reads quiz definitions from {dir}/{quizID}.yaml|yml|json.
type QuizLoader struct {
	dir string
}

func NewQuizLoader(dir string) *QuizLoader {
	return &QuizLoader{dir: dir}
}

func (l *QuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if !validID.MatchString(quizID) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	for _, ext := range extensions {
		path := filepath.Join(l.dir, quizID+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("read quiz %s: %w", quizID, err)
		}
		quiz, err := ParseQuiz(path, data)
		if err != nil {
			return domain.Quiz{}, err
		}
		if quiz.ID == "" {
			quiz.ID = quizID
		}
		if err := quiz.Validate(); err != nil {
			return domain.Quiz{}, fmt.Errorf("%s: %w", path, err)
		}
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// List returns the quiz ids available in the directory, sorted.
func (l *QuizLoader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list quizzes in %s: %w", l.dir, err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !supported(entry.Name()) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if !validID.MatchString(id) || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ParseQuiz decodes a quiz document, picking JSON or YAML from the file name.
// Unknown fields are rejected so typos in definitions surface early.
func ParseQuiz(name string, data []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if strings.EqualFold(filepath.Ext(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&quiz); err != nil {
			return domain.Quiz{}, fmt.Errorf("decode %s: %w", name, err)
		}
		return quiz, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return quiz, nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
