// Package text splits narration input into speech-service sized chunks.
package text

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one ordered piece of normalized input text.
type Chunk struct {
	// Index is the position of the chunk; indices are dense from 0.
	Index int
	// Content is trimmed, non-empty and at most the requested length in runes.
	Content string
	// Partial is set when Content ends inside a token that continues in the
	// next chunk. Only hard cuts of oversized tokens produce partial chunks.
	Partial bool
}

const (
	sentenceEnders = ".!?;:…。！？；"
	clauseEnders   = ",，、"
	closers        = `"')]}»”’`
)

// Normalize collapses every whitespace run to a single space and trims the
// result. It is the only lossy transform Split applies.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Split breaks s into chunks of at most maxLen runes. It prefers sentence
// boundaries, then clause boundaries, then word boundaries, and cuts inside
// a token only when that token alone exceeds maxLen. Empty or whitespace
// input yields no chunks.
func Split(s string, maxLen int) []Chunk {
	if maxLen < 1 {
		maxLen = 1
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	p := &packer{max: maxLen}
	for _, sentence := range group(words, sentenceEnders) {
		p.add(sentence, levelSentence)
	}
	p.flush(false)

	return p.chunks
}

// Join reassembles chunks into the normalized text they were split from.
func Join(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 && !chunks[i-1].Partial {
			b.WriteByte(' ')
		}
		b.WriteString(c.Content)
	}
	return b.String()
}

type level int

const (
	levelSentence level = iota
	levelClause
	levelWord
)

type packer struct {
	max    int
	cur    strings.Builder
	curLen int
	chunks []Chunk
}

func (p *packer) add(words []string, lvl level) {
	unit := strings.Join(words, " ")
	n := utf8.RuneCountInString(unit)

	if p.fits(n) {
		p.append(unit, n)
		return
	}

	if n <= p.max {
		p.flush(false)
		p.append(unit, n)
		return
	}

	switch lvl {
	case levelSentence:
		for _, clause := range group(words, clauseEnders) {
			p.add(clause, levelClause)
		}
	case levelClause:
		for _, w := range words {
			p.add([]string{w}, levelWord)
		}
	default:
		p.cut(unit)
	}
}

// cut hard-splits a single oversized token, preferring to break right after
// punctuation inside the window (useful for scripts written without spaces).
func (p *packer) cut(token string) {
	p.flush(false)

	runes := []rune(token)
	for len(runes) > p.max {
		at := p.max
		for i := p.max - 1; i > 0; i-- {
			if strings.ContainsRune(sentenceEnders+clauseEnders, runes[i]) {
				at = i + 1
				break
			}
		}
		p.append(string(runes[:at]), at)
		p.flush(true)
		runes = runes[at:]
	}

	if len(runes) > 0 {
		p.append(string(runes), len(runes))
	}
}

func (p *packer) fits(n int) bool {
	if p.curLen == 0 {
		return n <= p.max
	}
	return p.curLen+1+n <= p.max
}

func (p *packer) append(unit string, n int) {
	if p.curLen > 0 {
		p.cur.WriteByte(' ')
		p.curLen++
	}
	p.cur.WriteString(unit)
	p.curLen += n
}

func (p *packer) flush(partial bool) {
	if p.curLen == 0 {
		return
	}
	p.chunks = append(p.chunks, Chunk{
		Index:   len(p.chunks),
		Content: p.cur.String(),
		Partial: partial,
	})
	p.cur.Reset()
	p.curLen = 0
}

// group splits words into runs that each end with a word whose final
// non-closing rune is one of enders.
func group(words []string, enders string) [][]string {
	var groups [][]string
	start := 0
	for i, w := range words {
		if endsWith(w, enders) {
			groups = append(groups, words[start:i+1])
			start = i + 1
		}
	}
	if start < len(words) {
		groups = append(groups, words[start:])
	}
	return groups
}

func endsWith(word, enders string) bool {
	trimmed := strings.TrimRight(word, closers)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(enders, r)
}
