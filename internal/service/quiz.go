package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"gorm.io/datatypes"

	"exam-coach/internal/model"
)

const quizOptions = 4

// QuizStore is the part of the content repository quiz synthesis needs.
type QuizStore interface {
	Distractors(ctx context.Context, lesson *model.Lesson, n int) ([]string, error)
	SaveQuiz(ctx context.Context, quiz *model.QuizItem) error
}

// QuizBuilder binds a multiple-choice quiz to a lesson.
type QuizBuilder struct {
	store   QuizStore
	shuffle func(n int, swap func(i, j int))
}

func NewQuizBuilder(store QuizStore) *QuizBuilder {
	return &QuizBuilder{store: store, shuffle: rand.Shuffle}
}

var fallbackDistractors = []string{
	"Refere-se exclusivamente a procedimentos do setor privado, sem aplicação na administração pública.",
	"Trata-se de uma exceção prevista apenas em normas municipais.",
	"É um conceito revogado que não é mais cobrado em provas.",
	"Aplica-se somente quando houver autorização judicial prévia.",
}

// Build returns the repository quiz when it is usable, otherwise synthesizes one
// from the lesson definition and stores it so replies can be graded by id.
func (b *QuizBuilder) Build(ctx context.Context, lesson *model.Lesson, existing *model.QuizItem) (*model.QuizItem, error) {
	if lesson == nil {
		return nil, errors.New("quiz for nil lesson")
	}
	if existing != nil && len(existing.Options) >= 2 && existing.CorrectIndex >= 0 && existing.CorrectIndex < len(existing.Options) {
		return existing, nil
	}

	correct := strings.TrimSpace(lesson.Definition)
	if correct == "" {
		return nil, fmt.Errorf("lesson %d has no definition to quiz on", lesson.ID)
	}

	candidates, err := b.store.Distractors(ctx, lesson, quizOptions-1)
	if err != nil {
		return nil, err
	}
	taken := map[string]bool{fold(correct): true}
	options := []string{correct}
	for _, pool := range [][]string{candidates, fallbackDistractors} {
		for _, d := range pool {
			if len(options) == quizOptions {
				break
			}
			d = strings.TrimSpace(d)
			key := fold(d)
			if key == "" || taken[key] {
				continue
			}
			taken[key] = true
			options = append(options, d)
		}
	}

	// Track positions, not text, so the correct index survives the shuffle.
	order := make([]int, len(options))
	for i := range order {
		order[i] = i
	}
	b.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	shuffled := make([]string, len(options))
	correctIndex := 0
	for pos, src := range order {
		shuffled[pos] = options[src]
		if src == 0 {
			correctIndex = pos
		}
	}

	explanation := strings.TrimSpace(lesson.Explanation)
	if explanation == "" {
		explanation = correct
	}
	quiz := &model.QuizItem{
		LessonID:     lesson.ID,
		Question:     fmt.Sprintf(textQuizQuestion, lesson.Title),
		Options:      datatypes.NewJSONSlice(shuffled),
		CorrectIndex: correctIndex,
		Explanation:  explanation,
		Synthesized:  true,
	}
	if err := b.store.SaveQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}
