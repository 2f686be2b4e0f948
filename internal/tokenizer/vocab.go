package tokenizer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Reserved surface forms for sentinel tokens.
const (
	PadToken = "<pad>"
	UnkToken = "<unk>"
	BOSToken = "<s>"
	EOSToken = "</s>"
)

// Specials holds the ids of sentinel tokens. Absent sentinels are -1.
type Specials struct {
	Pad int
	Unk int
	BOS int
	EOS int
}

// IsSentinel reports whether id is a pad, start or end marker.
func (s Specials) IsSentinel(id int) bool {
	return id >= 0 && (id == s.Pad || id == s.BOS || id == s.EOS)
}

// Vocabulary maps surface tokens to ids and back. Implementations must keep
// every id in [0, Size()).
type Vocabulary interface {
	ID(token string) (int, bool)
	Token(id int) (string, bool)
	Size() int
	Specials() Specials
}

// WordVocabulary is a word-level Vocabulary. It is built once and may only
// grow through Add.
type WordVocabulary struct {
	mu        sync.RWMutex
	tokenToID map[string]int
	idToToken map[int]string
	size      int
	specials  Specials
}

// NewWordVocabulary builds a vocabulary from a token->id table. Tokens are
// lower-cased and must each form a single pre-token, so decoded output always
// re-encodes to the same ids. An <unk> entry is appended when missing.
func NewWordVocabulary(entries map[string]int) (*WordVocabulary, error) {
	v := &WordVocabulary{
		tokenToID: make(map[string]int, len(entries)+1),
		idToToken: make(map[int]string, len(entries)+1),
	}
	// deterministic error reporting
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, raw := range keys {
		id := entries[raw]
		tok := strings.ToLower(raw)
		if err := validateToken(tok); err != nil {
			return nil, err
		}
		if id < 0 {
			return nil, fmt.Errorf("token %q: negative id %d", raw, id)
		}
		if prev, ok := v.tokenToID[tok]; ok {
			return nil, fmt.Errorf("token %q: duplicate of id %d after normalization", raw, prev)
		}
		if prev, ok := v.idToToken[id]; ok {
			return nil, fmt.Errorf("id %d: assigned to both %q and %q", id, prev, tok)
		}
		v.tokenToID[tok] = id
		v.idToToken[id] = tok
		if id+1 > v.size {
			v.size = id + 1
		}
	}
	if _, ok := v.tokenToID[UnkToken]; !ok {
		v.tokenToID[UnkToken] = v.size
		v.idToToken[v.size] = UnkToken
		v.size++
	}
	v.specials = Specials{
		Pad: v.lookup(PadToken),
		Unk: v.lookup(UnkToken),
		BOS: v.lookup(BOSToken),
		EOS: v.lookup(EOSToken),
	}
	return v, nil
}

// NewWordVocabularyFromList assigns ids in list order.
func NewWordVocabularyFromList(tokens []string) (*WordVocabulary, error) {
	m := make(map[string]int, len(tokens))
	for i, t := range tokens {
		if _, dup := m[strings.ToLower(t)]; dup {
			return nil, fmt.Errorf("token %q: listed twice", t)
		}
		m[strings.ToLower(t)] = i
	}
	return NewWordVocabulary(m)
}

func (v *WordVocabulary) lookup(tok string) int {
	if id, ok := v.tokenToID[tok]; ok {
		return id
	}
	return -1
}

func (v *WordVocabulary) ID(token string) (int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.tokenToID[token]
	return id, ok
}

func (v *WordVocabulary) Token(id int) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	t, ok := v.idToToken[id]
	return t, ok
}

func (v *WordVocabulary) Size() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.size
}

func (v *WordVocabulary) Specials() Specials {
	return v.specials
}

// Add appends token and returns its id. Existing tokens keep their id.
func (v *WordVocabulary) Add(token string) (int, error) {
	tok := strings.ToLower(token)
	if err := validateToken(tok); err != nil {
		return 0, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if id, ok := v.tokenToID[tok]; ok {
		return id, nil
	}
	id := v.size
	v.tokenToID[tok] = id
	v.idToToken[id] = tok
	v.size++
	return id, nil
}

// validateToken rejects entries the pre-tokenizer could never produce.
func validateToken(tok string) error {
	if tok == "" {
		return fmt.Errorf("empty token")
	}
	parts := preTokenize(tok)
	if len(parts) != 1 || parts[0] != tok {
		return fmt.Errorf("token %q: does not form a single pre-token (splits into %q)", tok, parts)
	}
	return nil
}
