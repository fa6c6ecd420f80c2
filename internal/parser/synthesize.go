package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	yearRe    = regexp.MustCompile(`^\d{4}$`)
	numericRe = regexp.MustCompile(`^\d+$`)
)

// synthesizeOptions builds a four-option list around a free-text answer:
// the answer itself plus generated distractors, shuffled so the correct
// option does not always land in slot A.
func (p *Parser) synthesizeOptions(answer string) []string {
	options := append([]string{answer}, p.distractors(answer)...)
	if len(options) > 4 {
		options = options[:4]
	}
	p.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// distractors generates three plausible wrong answers keyed off the answer's
// shape: years shift by small deltas, plain numbers by ±1 and doubling,
// percentages by ±5 points, and text answers by word reordering/truncation.
func (p *Parser) distractors(answer string) []string {
	var candidates []string

	switch {
	case yearRe.MatchString(answer):
		year, _ := strconv.Atoi(answer)
		candidates = append(candidates,
			strconv.Itoa(year-1),
			strconv.Itoa(year+1),
			strconv.Itoa(year-10),
		)
	case numericRe.MatchString(answer):
		num, _ := strconv.Atoi(answer)
		candidates = append(candidates,
			strconv.Itoa(num+1),
			strconv.Itoa(num-1),
			strconv.Itoa(num*2),
		)
	case strings.Contains(answer, "%"):
		num, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(answer), "%"), 64)
		if err == nil {
			candidates = append(candidates,
				formatPercent(num+5),
				formatPercent(num-5),
				formatPercent(num*2),
			)
		}
	default:
		words := strings.Fields(answer)
		if len(words) > 1 {
			reversed := make([]string, len(words))
			for i, w := range words {
				reversed[len(words)-1-i] = w
			}
			candidates = append(candidates,
				strings.Join(reversed, " "),
				strings.Join(words[1:], " "),
				strings.Join(words[:len(words)-1], " "),
			)
		} else {
			candidates = append(candidates,
				answer+"s",
				"Not "+answer,
				answer+" related",
			)
		}
	}

	unique := dedupe(candidates, answer)
	for len(unique) < 3 {
		unique = append(unique, fmt.Sprintf("Option %d", len(unique)+1))
	}
	return unique[:3]
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func dedupe(candidates []string, answer string) []string {
	seen := map[string]struct{}{answer: {}}
	var out []string
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
