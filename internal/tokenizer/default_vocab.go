package tokenizer

// defaultTokens is the built-in word-level vocabulary. Index = id.
var defaultTokens = []string{
	PadToken, UnkToken, BOSToken, EOSToken,
	".", ",", "!", "?", "'", "\"", ":", ";", "-", "(", ")",
	"the", "a", "an", "and", "or", "but", "not", "no", "yes",
	"is", "are", "was", "be", "to", "of", "in", "on", "for", "with",
	"as", "at", "by", "it", "this", "that", "i", "you", "we", "they",
	"hello", "world", "what", "how", "why", "good", "bad", "great",
	"text", "document", "summary", "keywords", "sentiment", "category",
	"positive", "negative", "neutral", "model", "answer", "question",
	"data", "time", "people", "work", "new", "about",
}

// DefaultVocabulary returns a fresh copy of the built-in vocabulary.
func DefaultVocabulary() *WordVocabulary {
	v, err := NewWordVocabularyFromList(defaultTokens)
	if err != nil {
		panic("tokenizer: invalid built-in vocabulary: " + err.Error())
	}
	return v
}
