package chunk

// Chunker splits text into a sequence of overlapping, fixed-size windows.
// It is stateless and safe for concurrent use.
type Chunker struct {
	policy  Policy
	window  int
	overlap int
}

// New creates a Chunker for policy using the spec's default window and
// overlap sizes.
func New(policy Policy) *Chunker {
	return NewWithOptions(policy, Options{})
}

// NewWithOptions creates a Chunker with custom target/overlap sizing.
func NewWithOptions(policy Policy, opts Options) *Chunker {
	window, overlap := windowSize(policy, opts)
	return &Chunker{policy: policy, window: window, overlap: overlap}
}

// PolicyFor picks the token-based or character-based policy for a provider,
// matching whichever the embedding provider's has_tokenizer flag reports.
func PolicyFor(hasTokenizer bool) Policy {
	if hasTokenizer {
		return PolicyToken
	}
	return PolicyChar
}

// Chunk splits text into spans covering the entire input verbatim. Inputs
// shorter than one window produce a single span at Pos=0. Empty input
// produces no spans.
func (c *Chunker) Chunk(text string) []Span {
	if len(text) == 0 {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= c.window {
		return []Span{{Pos: 0, Text: text}}
	}

	step := c.window - c.overlap
	if step <= 0 {
		step = c.window
	}

	var spans []Span
	for start := 0; start < n; start += step {
		end := start + c.window
		if end > n {
			end = n
		}
		spans = append(spans, Span{Pos: start, Text: string(runes[start:end])})
		if end == n {
			break
		}
	}
	return spans
}
