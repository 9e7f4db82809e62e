package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"
)

// Token is one whitespace/punctuation-delimited word with its byte offsets.
type Token struct {
	Text       string
	Start, End int
}

// WordPieceTokenizer encodes text the way BERT-family NER models expect:
// words split into vocabulary pieces, wrapped in [CLS]/[SEP], with a piece
// to word index mapping so model labels can be projected back onto spans.
type WordPieceTokenizer struct {
	vocab      map[string]int
	unkID      int
	clsID      int
	sepID      int
	maxWordLen int
	maxSeqLen  int
	lowercase  bool
}

// EncodedText is the model input plus the bookkeeping needed to map piece
// predictions back to word offsets.
type EncodedText struct {
	InputIDs       []int64
	AttentionMask  []int64
	TokenTypeIDs   []int64
	PieceToWordIdx []int
	Words          []Token
}

type tokenizerJSON struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	Normalizer struct {
		Lowercase *bool `json:"lowercase"`
	} `json:"normalizer"`
}

// NewWordPieceTokenizer loads a HuggingFace tokenizer.json vocabulary.
func NewWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg tokenizerJSON
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if len(cfg.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocab is empty")
	}
	lowercase := true
	if cfg.Normalizer.Lowercase != nil {
		lowercase = *cfg.Normalizer.Lowercase
	}
	t := &WordPieceTokenizer{
		vocab:      cfg.Model.Vocab,
		maxWordLen: 100,
		maxSeqLen:  512,
		lowercase:  lowercase,
	}
	var ok bool
	if t.unkID, ok = t.vocab["[UNK]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [UNK]")
	}
	if t.clsID, ok = t.vocab["[CLS]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [CLS]")
	}
	if t.sepID, ok = t.vocab["[SEP]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [SEP]")
	}
	return t, nil
}

// Encode tokenizes text. Words past the model's sequence limit are dropped.
func (t *WordPieceTokenizer) Encode(text string) *EncodedText {
	words := SplitWords(text)
	out := &EncodedText{
		InputIDs:       []int64{int64(t.clsID)},
		AttentionMask:  []int64{1},
		TokenTypeIDs:   []int64{0},
		PieceToWordIdx: []int{-1},
		Words:          words,
	}
	for wi, word := range words {
		for _, pieceID := range t.wordToPieces(word.Text) {
			if len(out.InputIDs) >= t.maxSeqLen-1 {
				break
			}
			out.InputIDs = append(out.InputIDs, int64(pieceID))
			out.AttentionMask = append(out.AttentionMask, 1)
			out.TokenTypeIDs = append(out.TokenTypeIDs, 0)
			out.PieceToWordIdx = append(out.PieceToWordIdx, wi)
		}
		if len(out.InputIDs) >= t.maxSeqLen-1 {
			break
		}
	}
	out.InputIDs = append(out.InputIDs, int64(t.sepID))
	out.AttentionMask = append(out.AttentionMask, 1)
	out.TokenTypeIDs = append(out.TokenTypeIDs, 0)
	out.PieceToWordIdx = append(out.PieceToWordIdx, -1)
	return out
}

func (t *WordPieceTokenizer) wordToPieces(word string) []int {
	if word == "" {
		return []int{t.unkID}
	}
	normalized := word
	if t.lowercase {
		normalized = strings.ToLower(word)
	}
	runes := []rune(normalized)
	if len(runes) > t.maxWordLen {
		return []int{t.unkID}
	}
	if id, ok := t.vocab[string(runes)]; ok {
		return []int{id}
	}
	ids := make([]int, 0)
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found == -1 {
			return []int{t.unkID}
		}
		ids = append(ids, found)
		start = end
	}
	if len(ids) == 0 {
		return []int{t.unkID}
	}
	return ids
}

// SplitWords splits text into letter/digit runs with byte offsets.
func SplitWords(text string) []Token {
	tokens := make([]Token, 0)
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Start: start, End: len(text)})
	}
	return tokens
}

// mergeBIO folds per-word BIO labels into typed spans, averaging the word
// scores over each span.
func mergeBIO(words []Token, labels []string, scores []float64) []RawEntity {
	out := make([]RawEntity, 0)
	var cur *RawEntity
	count := 0.0
	flush := func() {
		if cur != nil {
			cur.Score = cur.Score / math.Max(1, count)
			out = append(out, *cur)
			cur = nil
			count = 0
		}
	}
	for i := range words {
		label := labels[i]
		if label == "O" || label == "" {
			flush()
			continue
		}
		parts := strings.SplitN(label, "-", 2)
		if len(parts) != 2 {
			continue
		}
		prefix, typ := parts[0], mapModelType(parts[1])
		if prefix != "I" && prefix != "B" {
			continue
		}
		if prefix == "B" || cur == nil || cur.Type != typ {
			flush()
			cur = &RawEntity{Type: typ, Start: words[i].Start, End: words[i].End, Score: scores[i], Source: "model"}
			count = 1
			continue
		}
		cur.End = words[i].End
		cur.Score += scores[i]
		count++
	}
	flush()
	return out
}

// mapModelType normalizes CoNLL-style labels onto the entity type names the
// extraction engine uses.
func mapModelType(t string) string {
	switch strings.ToUpper(t) {
	case "PER", "PERSON":
		return "PERSON"
	case "ORG", "ORGANIZATION":
		return "ORGANIZATION"
	case "LOC", "GPE", "LOCATION":
		return "LOCATION"
	case "DATE", "TIME":
		return "DATE"
	case "MONEY":
		return "MONEY"
	default:
		return strings.ToUpper(t)
	}
}
