package exam

import "quiz-server/models"

// sameSet reports whether a and b contain the same options, ignoring order and
// duplicates. Supersets and subsets of a multi-select answer are not equal.
func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, s := range a {
		as[s] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, s := range b {
		bs[s] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

// IsCorrect reports whether selected is exactly the question's correct-answer set.
// An empty selection is never correct.
func IsCorrect(q models.Question, selected []string) bool {
	if len(selected) == 0 {
		return false
	}
	return sameSet(selected, q.CorrectAnswers)
}

func accuracy(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	return float64(correct) / float64(answered) * 100
}
