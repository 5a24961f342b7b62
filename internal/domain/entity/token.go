package entity

// TokenInfo holds the immutable on-chain metadata of a token contract.
// Fetched lazily and cached indefinitely: decimals/symbol/name never change
// for a deployed contract.
type TokenInfo struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
