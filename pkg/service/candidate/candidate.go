package candidate

import (
	"context"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"golang.org/x/text/unicode/norm"
)

// Embedder generates the vector for a normalized summary.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Builder turns extracted facts into candidates ready for the decision
// ladder: summary text normalized, deterministic key canonicalized, and the
// embedding computed over the normalized form. Normalizing before embedding
// keeps trivially reworded duplicates close in vector space.
type Builder struct {
	embedder Embedder
}

func New(embedder Embedder) *Builder {
	return &Builder{embedder: embedder}
}

// typographic punctuation folds to ASCII before embedding
var punctuationFolder = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
	"…", "...",
	" ", " ",
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeSummary canonicalizes summary text: NFC, typographic punctuation
// folded, whitespace collapsed, trimmed, and truncated to the record bound.
// Identical facts normalize to identical strings so embedding caches and
// similarity checks see one form.
func NormalizeSummary(text string) string {
	text = norm.NFC.String(text)
	text = punctuationFolder.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > model.MaxSummaryRunes {
		text = strings.TrimSpace(string(runes[:model.MaxSummaryRunes]))
	}

	return text
}

var keyRe = regexp.MustCompile(`^[a-z0-9_]+:[a-z0-9_]+$`)

// NormalizeKey canonicalizes a deterministic "<entity>:<attribute>" key.
// Empty input stays empty; anything else must normalize to the canonical
// lowercase form or the key is rejected.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", nil
	}

	key = strings.ReplaceAll(key, " ", "_")
	if !keyRe.MatchString(key) {
		return "", goerr.New("malformed deterministic key", goerr.V("key", key))
	}

	return key, nil
}

// Tokens returns the lowercase token set of a summary, used by the fallback
// band's lexical overlap guard.
func Tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(NormalizeSummary(text))) {
		tok = strings.Trim(tok, `.,;:!?"'()[]`)
		if len(tok) < 3 {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// Overlap counts tokens shared by two summaries.
func Overlap(a, b string) int {
	ta := Tokens(a)
	tb := Tokens(b)

	n := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			n++
		}
	}
	return n
}

// Build normalizes an extracted fact and attaches its embedding. The summary
// must survive normalization non-empty and the importance must be in [0,1].
func (b *Builder) Build(ctx context.Context, ns types.Namespace, category types.Category, summary string, importance float64, key string) (*model.Candidate, error) {
	if err := ns.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid candidate namespace")
	}

	normalized := NormalizeSummary(summary)
	if normalized == "" {
		return nil, goerr.New("candidate summary is empty after normalization")
	}
	if importance < 0 || importance > 1 {
		return nil, goerr.New("candidate importance out of range", goerr.V("importance", importance))
	}

	normKey, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	category = category.Normalize()

	emb, err := b.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed candidate summary")
	}

	return &model.Candidate{
		Namespace:        ns,
		Category:         category,
		Summary:          normalized,
		Importance:       importance,
		DeterministicKey: normKey,
		Embedding:        emb,
	}, nil
}
