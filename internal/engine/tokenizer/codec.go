package tokenizer

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a token list for the token cache.
func Encode(tokens []Token) ([]byte, error) {
	data, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]Token, error) {
	var tokens []Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	return tokens, nil
}
