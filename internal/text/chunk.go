package text

import (
	"strings"
	"unicode"
)

// Abbreviations whose trailing period does not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
	"etc": true, "vs": true, "e.g": true, "i.e": true, "cf": true,
	"inc": true, "ltd": true, "co": true, "corp": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
}

// Chunker splits cleaned prose into chunks sized for one synthesis
// request each, preferring sentence boundaries.
type Chunker struct {
	maxChars int
}

// NewChunker returns a Chunker that caps chunks at maxChars characters.
func NewChunker(maxChars int) *Chunker {
	return &Chunker{maxChars: maxChars}
}

// Chunk splits text into ordered, non-empty chunks of at most the
// configured size. Sentences are packed greedily; a single sentence
// longer than the cap is split on word boundaries.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		if len(sentence) > c.maxChars {
			flush()
			chunks = append(chunks, c.splitWords(sentence)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > c.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitWords breaks an oversized sentence at word boundaries.
func (c *Chunker) splitWords(sentence string) []string {
	var chunks []string
	var current strings.Builder

	for _, word := range strings.Fields(sentence) {
		if current.Len() > 0 && current.Len()+1+len(word) > c.maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences splits text after terminal punctuation followed by
// whitespace, keeping abbreviations, decimals and ellipses intact.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 >= len(runes) {
			break
		}
		if !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && !periodEndsSentence(runes, i) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func periodEndsSentence(runes []rune, pos int) bool {
	// Ellipsis.
	if pos > 0 && runes[pos-1] == '.' {
		return false
	}
	// Decimal number.
	if pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
		return false
	}
	return !abbreviations[lastWord(runes, pos)]
}

func lastWord(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	return strings.ToLower(string(runes[start+1 : pos]))
}
