package entity

import "errors"

// Таксономия ошибок ценового ядра. Ошибки уровня "этот маршрут/fee tier не
// сработал" внутри каскадов НЕ попадают сюда — они проглатываются и переводят
// каскад на следующий вариант. Наружу выходит только исчерпанный каскад.
var (
	// ErrInvalidToken means the address has no contract code or does not
	// implement the minimal ERC20 read interface (decimals/symbol/name).
	ErrInvalidToken = errors.New("invalid token address or unable to fetch token info")

	// ErrNoLiquidity means every route, protocol version and fee tier was
	// tried in both directions and none produced a quote.
	ErrNoLiquidity = errors.New("no liquidity path found")

	// ErrUpstreamTimeout means an RPC or aggregator call exceeded its bound.
	ErrUpstreamTimeout = errors.New("upstream call timed out")

	// ErrConfiguration means a required address or table entry is missing.
	ErrConfiguration = errors.New("invalid configuration")
)
