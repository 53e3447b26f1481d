// Package tokens counts transcript tokens so assistant calls stay inside
// the configured context budget.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Message overhead for chat models: 3 tokens per message plus 1 for the
// role, per OpenAI's counting guidance.
const perMessageOverhead = 4

// estimatorCharsPerToken is the fallback ratio when no codec resolves.
const estimatorCharsPerToken = 4.0

// Counter counts tokens with tiktoken, caching codecs per encoding.
// When a model resolves to no codec it falls back to a characters/4
// estimate rather than failing; a trim decision never blocks a chat.
type Counter struct {
	cacheMu    sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter returns a Counter with an empty codec cache.
func NewCounter() *Counter {
	return &Counter{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// CountText returns the token count of text under the model's encoding.
func (c *Counter) CountText(model, text string) int {
	codec, err := c.getCodec(model)
	if err != nil {
		return estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return estimate(text)
	}
	return len(ids)
}

// CountMessage returns the cost of one chat message including the
// per-message overhead.
func (c *Counter) CountMessage(model, content string) int {
	return perMessageOverhead + c.CountText(model, content)
}

func (c *Counter) getCodec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding picks the fallback encoding for models tokenizer.
// ForModel does not know. Newer OpenAI-family models use o200k_base;
// gpt-4/gpt-3.5 use cl100k_base; unknown models default to o200k_base.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"),
		strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

func estimate(text string) int {
	return int(float64(len(text)) / estimatorCharsPerToken)
}
