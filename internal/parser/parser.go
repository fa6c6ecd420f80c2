// Package parser turns raw document text extracted from uploaded files into
// structured questions. It recognizes one fixed line grammar and recovers
// whatever valid questions it can; malformed fragments are dropped, never
// surfaced as errors.
package parser

import (
	"math/rand"
	"regexp"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

var (
	topicRe        = regexp.MustCompile(`(?i)===\s*TOPIC:\s*(.+?),\s*LEVEL:\s*(.+?)\s*===`)
	questionRe     = regexp.MustCompile(`(?i)^(?:Q(?:uestion)?\s*)?(\d+)[.):\s]+(.+)`)
	optionRe       = regexp.MustCompile(`^([A-Da-d])[.):\s]+(.+)`)
	answerLetterRe = regexp.MustCompile(`(?i)^(?:Answer|Correct|Ans|Solution)[\s:]*([A-Da-d])[.)]?\s*$`)
	answerTextRe   = regexp.MustCompile(`(?i)^(?:Answer|Correct|Ans|Solution)[\s:]+(.+)`)
	bareLetterRe   = regexp.MustCompile(`^([A-Da-d])$`)
	bulletRe       = regexp.MustCompile(`^[-•·*]\s`)
	explanationRe  = regexp.MustCompile(`(?i)^(?:Explanation|Exp):\s*(.*)`)
)

// Parser assembles questions from normalized text. The rand source only
// drives distractor shuffling for synthesized option lists.
type Parser struct {
	rnd *rand.Rand
}

func New() *Parser {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand allows deterministic option shuffling in tests.
func NewWithRand(rnd *rand.Rand) *Parser {
	return &Parser{rnd: rnd}
}

// pending is a question under construction while scanning lines.
type pending struct {
	question   domain.Question
	answerText string // raw free-text answer, kept for option synthesis
}

// Parse scans text line by line and returns the questions it recovered plus
// the count of fragments that were started but dropped as invalid. It never
// fails: zero recognizable questions yields an empty slice.
func (p *Parser) Parse(text, category string) ([]domain.Question, int) {
	lines := normalizeLines(text)

	var (
		questions  []domain.Question
		dropped    int
		current    *pending
		topic      string
		level      string
		collecting bool
	)

	finalize := func() {
		if current == nil {
			return
		}
		q, ok := p.finish(*current)
		if ok {
			questions = append(questions, q)
		} else {
			dropped++
		}
		current = nil
	}

	for _, line := range lines {
		if m := topicRe.FindStringSubmatch(line); m != nil {
			topic = strings.ToLower(strings.TrimSpace(m[1]))
			level = strings.ToLower(strings.TrimSpace(m[2]))
			continue
		}

		if m := questionRe.FindStringSubmatch(line); m != nil {
			finalize()
			current = &pending{question: domain.Question{
				Text:     strings.TrimSpace(m[2]),
				Category: category,
				Topic:    topic,
				Level:    level,
			}}
			collecting = true
			continue
		}

		if current == nil {
			continue
		}
		q := &current.question

		if m := optionRe.FindStringSubmatch(line); m != nil {
			if len(q.Options) < 4 {
				collecting = false
				q.Options = append(q.Options, strings.TrimSpace(m[2]))
			}
			// a fifth option line is ignored
			continue
		}

		if m := answerLetterRe.FindStringSubmatch(line); m != nil {
			collecting = false
			idx := letterIndex(m[1])
			if idx < len(q.Options) {
				q.CorrectAnswer = q.Options[idx]
			}
			continue
		}

		if m := answerTextRe.FindStringSubmatch(line); m != nil {
			collecting = false
			answer := strings.TrimSpace(m[1])
			current.answerText = answer
			if len(q.Options) > 0 {
				if match, ok := bestMatchingOption(answer, q.Options); ok {
					q.CorrectAnswer = match
				}
			}
			continue
		}

		if len(q.Options) == 4 && q.CorrectAnswer == "" {
			if m := bareLetterRe.FindStringSubmatch(line); m != nil {
				collecting = false
				q.CorrectAnswer = q.Options[letterIndex(m[1])]
				continue
			}
		}

		if collecting && len(q.Options) == 0 {
			if bulletRe.MatchString(line) {
				q.Text += "\n• " + strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
			} else if len(line) > 10 {
				q.Text += "\n" + line
			}
			continue
		}

		// An un-numbered follow-up question closes the answered one.
		if q.CorrectAnswer != "" && strings.HasSuffix(line, "?") && len(line) > 20 {
			finalize()
			current = &pending{question: domain.Question{
				Text:     line,
				Category: category,
				Topic:    topic,
				Level:    level,
			}}
			collecting = true
			continue
		}

		if m := explanationRe.FindStringSubmatch(line); m != nil && q.CorrectAnswer != "" {
			q.Explanation = strings.TrimSpace(m[1])
			continue
		}
	}
	finalize()

	return questions, dropped
}

// finish validates an assembled question and, for free-text answers without
// options, synthesizes a plausible four-option list around the answer.
func (p *Parser) finish(pq pending) (domain.Question, bool) {
	q := pq.question
	if len(q.Text) <= 5 || q.Category == "" || q.Topic == "" || q.Level == "" {
		return domain.Question{}, false
	}

	if len(q.Options) == 4 && q.CorrectAnswer != "" && containsOption(q.Options, q.CorrectAnswer) {
		return q, true
	}

	if len(q.Options) == 0 && pq.answerText != "" {
		q.CorrectAnswer = pq.answerText
		q.Options = p.synthesizeOptions(pq.answerText)
		return q, true
	}

	return domain.Question{}, false
}

func normalizeLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func letterIndex(letter string) int {
	return int(strings.ToUpper(letter)[0] - 'A')
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}

// bestMatchingOption resolves a free-text answer against the option list:
// exact match, then substring containment either direction, then word-overlap
// scoring. The overlap heuristic counts tokens longer than 3 characters and
// requires a score of at least 0.5 against the longer token list.
func bestMatchingOption(answer string, options []string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(answer))

	for _, opt := range options {
		if strings.ToLower(strings.TrimSpace(opt)) == normalized {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt), normalized) {
			return opt, true
		}
	}
	for _, opt := range options {
		if strings.Contains(normalized, strings.ToLower(strings.TrimSpace(opt))) {
			return opt, true
		}
	}

	answerWords := significantWords(normalized)
	best := ""
	bestScore := 0.0
	for _, opt := range options {
		optionWords := significantWords(strings.ToLower(opt))
		matches := 0
		for _, w := range answerWords {
			for _, ow := range optionWords {
				if strings.Contains(ow, w) || strings.Contains(w, ow) {
					matches++
					break
				}
			}
		}
		denom := len(answerWords)
		if len(optionWords) > denom {
			denom = len(optionWords)
		}
		if denom == 0 {
			continue
		}
		score := float64(matches) / float64(denom)
		if score > bestScore && score >= 0.5 {
			bestScore = score
			best = opt
		}
	}
	if best != "" {
		return best, true
	}
	return "", false
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}
