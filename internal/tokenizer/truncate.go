package tokenizer

// MaxStep caps how many characters a single truncation iteration removes.
const MaxStep = 100

// Truncation reports the outcome of Truncate.
type Truncation struct {
	Text       string
	Original   int // token count before truncation
	Final      int // token count of Text
	Iterations int // cuts performed; 0 when Text was already within budget
}

// Truncated reports whether any characters were removed.
func (t Truncation) Truncated() bool {
	return t.Iterations > 0
}

// Truncate shortens text from the end until counter reports at most ceiling
// tokens. Text already within budget is returned unchanged after a single
// Count. Otherwise characters are cut with a step that starts at 1 and
// doubles after every cut up to MaxStep; the step never shrinks, so the
// result may sit below the ceiling by up to one step's worth of tokens.
// A ceiling that no single character fits under yields "".
func Truncate(counter Counter, text string, ceiling int) Truncation {
	count := counter.Count(text)
	res := Truncation{Text: text, Original: count, Final: count}
	if count <= ceiling {
		return res
	}

	// Byte offset of every rune boundary, so cuts never split a character.
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))

	n := len(offsets) - 1 // characters kept
	step := 1
	for count > ceiling && n > 0 {
		n -= step
		if n < 0 {
			n = 0
		}
		step = min(step*2, MaxStep)
		res.Iterations++
		count = counter.Count(text[:offsets[n]])
	}

	res.Text = text[:offsets[n]]
	res.Final = count
	return res
}
