// Package tokenizer converts text to token ids and back over an injectable
// Vocabulary.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer is a deterministic, lossy text<->id mapping.
type Tokenizer struct {
	vocab Vocabulary
}

func New(v Vocabulary) *Tokenizer {
	return &Tokenizer{vocab: v}
}

// Vocabulary returns the underlying vocabulary.
func (t *Tokenizer) Vocabulary() Vocabulary { return t.vocab }

// VocabSize is the exclusive upper bound of every id produced by Encode.
func (t *Tokenizer) VocabSize() int { return t.vocab.Size() }

// Encode lower-cases text, splits it on whitespace with punctuation isolated
// and maps each piece through the vocabulary. Unknown pieces map to <unk>.
func (t *Tokenizer) Encode(text string) []int {
	unk := t.vocab.Specials().Unk
	pieces := preTokenize(text)
	ids := make([]int, 0, len(pieces))
	for _, p := range pieces {
		if id, ok := t.vocab.ID(p); ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, unk)
	}
	return ids
}

// EncodePrompt is Encode with the start sentinel prepended when the
// vocabulary defines one, so empty prompts still yield a sequence.
func (t *Tokenizer) EncodePrompt(text string) []int {
	ids := t.Encode(text)
	if bos := t.vocab.Specials().BOS; bos >= 0 {
		ids = append([]int{bos}, ids...)
	}
	return ids
}

// Decode drops pad/start/end sentinels and ids outside the vocabulary and
// joins the remaining surface tokens with single spaces.
func (t *Tokenizer) Decode(ids []int) string {
	sp := t.vocab.Specials()
	var b strings.Builder
	for _, id := range ids {
		if sp.IsSentinel(id) {
			continue
		}
		tok, ok := t.vocab.Token(id)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// IsEOS reports whether id is the end-of-sequence sentinel.
func (t *Tokenizer) IsEOS(id int) bool {
	eos := t.vocab.Specials().EOS
	return eos >= 0 && id == eos
}

// preTokenize splits lower-cased text into surface pieces: runs of word
// runes, single punctuation/symbol runes, and literal <special> markers.
func preTokenize(text string) []string {
	text = strings.ToLower(text)
	var out []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, text[start:end])
			start = -1
		}
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			flush(i)
			i += size
			continue
		}
		if r == '<' {
			if n := specialLen(text[i:]); n > 0 {
				flush(i)
				out = append(out, text[i:i+n])
				i += n
				continue
			}
		}
		if isIsolated(r) {
			flush(i)
			out = append(out, text[i:i+size])
			i += size
			continue
		}
		if start < 0 {
			start = i
		}
		i += size
	}
	flush(len(text))
	return out
}

func isIsolated(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r) || r == utf8.RuneError
}

// specialLen returns the byte length of a marker like <unk>, </s> or
// <|end|> at the start of s, or 0.
func specialLen(s string) int {
	i := 1
	if i < len(s) && s[i] == '/' {
		i++
	}
	body := i
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == '>' {
			if i == body {
				return 0
			}
			return i + size
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '|') {
			return 0
		}
		i += size
	}
	return 0
}
