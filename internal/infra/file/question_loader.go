// Package file loads question sets from the plain-text questions format:
// repeating five-line records (question text plus four options, the correct
// option suffixed with the marker), blank lines allowed anywhere.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"kahyeet/internal/domain"
	"kahyeet/internal/protocol"
)

// QuestionLoader reads a question file from disk on every load.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

// LoadQuestions parses the file into validated questions.
func (l *QuestionLoader) LoadQuestions(_ context.Context, _ string) ([]domain.Question, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open questions file: %w", err)
	}
	defer f.Close()

	var (
		questions []domain.Question
		asm       protocol.QuestionAssembler
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q, ok := asm.Feed(scanner.Text()); ok {
			if q.CorrectIndex < 0 {
				return nil, fmt.Errorf("question %d (%q) has no correct-answer marker", len(questions)+1, q.Text)
			}
			questions = append(questions, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	if asm.Pending() {
		return nil, fmt.Errorf("questions file ends mid-record after %d complete questions", len(questions))
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionsNotFound
	}
	return questions, nil
}
