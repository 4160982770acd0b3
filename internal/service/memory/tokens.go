package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// estimateTokens returns the cl100k_base token count of s, or 0 when
// the encoding is unavailable. Used for debug logging only, so a
// missing tokenizer is not an error.
func estimateTokens(s string) int {
	tokenizerOnce.Do(func() {
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		tokenizer = tk
	})

	if tokenizer == nil || s == "" {
		return 0
	}
	return len(tokenizer.Encode(s, nil, nil))
}
