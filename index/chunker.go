package index

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PadMarker = "<|NULL|>"
	TipMarker = "<TIP>"
)

var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunker splits text into windows of whitespace separated tokens. Consecutive
// windows start step tokens apart, so they overlap by window-step tokens.
type Chunker struct {
	window int
	step   int
	pad    bool
}

func NewChunker(window, step int, pad bool) (*Chunker, error) {
	if window <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: window %d and step %d must be positive", ErrInvalidChunking, window, step)
	}
	if step > window {
		return nil, fmt.Errorf("%w: step %d exceeds window %d", ErrInvalidChunking, step, window)
	}

	return &Chunker{window: window, step: step, pad: pad}, nil
}

// Chunk returns the windows of text. The last window may be short, in which case
// it is filled with PadMarker when padding is enabled. A non-empty tip is
// prepended to every chunk, see Tag.
func (c *Chunker) Chunk(text string, tip string) []string {
	tokens := strings.Fields(text)
	l := len(tokens)
	if l == 0 {
		return []string{}
	}

	res := make([]string, 0, l/c.step+1)
	for pos := 0; ; pos += c.step {
		end := min(pos+c.window, l)

		window := tokens[pos:end]
		if c.pad && len(window) < c.window {
			padded := make([]string, c.window)
			copy(padded, window)
			for i := len(window); i < c.window; i++ {
				padded[i] = PadMarker
			}
			window = padded
		}

		res = append(res, Tag(tip, strings.Join(window, " ")))
		if end >= l {
			break
		}
	}

	return res
}

// Tag prefixes a chunk with a provenance label.
func Tag(tip string, chunk string) string {
	if tip == "" {
		return chunk
	}

	return tip + " " + TipMarker + " " + chunk
}

// Display reverses Tag for the given tip and drops the trailing padding,
// leaving the text a reader should see. Markers inside the document text are
// kept.
func Display(chunk string, tip string) string {
	if tip != "" {
		chunk = strings.TrimPrefix(chunk, Tag(tip, ""))
	}

	tokens := strings.Fields(chunk)
	for len(tokens) > 0 && tokens[len(tokens)-1] == PadMarker {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}
