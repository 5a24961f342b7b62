package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"price_aggregator/internal/app/port"
	"price_aggregator/internal/domain/entity"
	"price_aggregator/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Minimal ABIs: только те методы, которые нужны ценовому ядру.
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

const v2RouterABI = `[
	{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}
]`

// QuoterV2 interface: quoteExactInputSingle is declared nonpayable but is only
// ever exercised through eth_call simulation. A revert means no pool exists
// for the pair/fee combination.
const v3QuoterABI = `[
	{"inputs":[{"components":[
		{"internalType":"address","name":"tokenIn","type":"address"},
		{"internalType":"address","name":"tokenOut","type":"address"},
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint24","name":"fee","type":"uint24"},
		{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
		"internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],
	"name":"quoteExactInputSingle",
	"outputs":[
		{"internalType":"uint256","name":"amountOut","type":"uint256"},
		{"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
		{"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
		{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
	"stateMutability":"nonpayable","type":"function"}
]`

var (
	parsedABIsOnce  sync.Once
	parsedERC20ABI  abi.ABI
	parsedRouterABI abi.ABI
	parsedQuoterABI abi.ABI
)

func initParsedABIs() {
	parsedABIsOnce.Do(func() {
		var err error
		if parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI)); err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		if parsedRouterABI, err = abi.JSON(strings.NewReader(v2RouterABI)); err != nil {
			panic(fmt.Sprintf("failed to parse V2 router ABI: %v", err))
		}
		if parsedQuoterABI, err = abi.JSON(strings.NewReader(v3QuoterABI)); err != nil {
			panic(fmt.Sprintf("failed to parse V3 quoter ABI: %v", err))
		}
	})
}

// quoteExactInputSingleParams mirrors IQuoterV2.QuoteExactInputSingleParams.
type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// EVMClient implements port.ChainClient for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	v2Router       common.Address
	v3Quoter       common.Address
	rpcCallTimeout time.Duration

	// Метаданные токенов неизменяемы on-chain, кешируем без ограничения.
	tokenMetaMu sync.RWMutex
	tokenMeta   map[common.Address]entity.TokenInfo
}

// NewEVMClient dials the configured RPC endpoint, falling back through the
// configured alternatives, and returns a ready chain client.
func NewEVMClient(chainCfg configloader.ChainConfig, contracts configloader.ContractsConfig) (port.ChainClient, error) {
	initParsedABIs()

	if !common.IsHexAddress(contracts.V2Router) || !common.IsHexAddress(contracts.V3Quoter) {
		return nil, fmt.Errorf("%w: v2Router/v3Quoter must be hex addresses", entity.ErrConfiguration)
	}

	connectionTimeout := time.Duration(chainCfg.ConnectionTimeoutSeconds) * time.Second
	rpcURLs := append([]string{chainCfg.RPCURL}, chainCfg.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		ethClient, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			return &EVMClient{
				ethClient:      ethClient,
				v2Router:       common.HexToAddress(contracts.V2Router),
				v3Quoter:       common.HexToAddress(contracts.V3Quoter),
				rpcCallTimeout: time.Duration(chainCfg.RPCCallTimeoutSeconds) * time.Second,
				tokenMeta:      make(map[common.Address]entity.TokenInfo),
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for chain %s: %w", chainCfg.Name, lastErr)
}

// GetTokenInfo fetches decimals/symbol/name in one JSON-RPC batch.
func (c *EVMClient) GetTokenInfo(ctx context.Context, tokenAddress string) (entity.TokenInfo, error) {
	if !common.IsHexAddress(tokenAddress) {
		return entity.TokenInfo{}, fmt.Errorf("%w: %s is not a hex address", entity.ErrInvalidToken, tokenAddress)
	}
	addr := common.HexToAddress(tokenAddress)

	c.tokenMetaMu.RLock()
	info, ok := c.tokenMeta[addr]
	c.tokenMetaMu.RUnlock()
	if ok {
		return info, nil
	}

	methods := []string{"decimals", "symbol", "name"}
	batchElems := make([]rpc.BatchElem, len(methods))
	for i, method := range methods {
		callData, err := parsedERC20ABI.Pack(method)
		if err != nil {
			return entity.TokenInfo{}, fmt.Errorf("failed to pack %s call: %w", method, err)
		}
		batchElems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   addr,
					"data": hexutil.Bytes(callData),
				},
				"latest",
			},
			Result: new(hexutil.Bytes),
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return entity.TokenInfo{}, fmt.Errorf("%w: token metadata batch for %s: %v", entity.ErrUpstreamTimeout, tokenAddress, err)
		}
		return entity.TokenInfo{}, fmt.Errorf("RPC batch call failed for %s: %w", tokenAddress, err)
	}

	unpacked := make([][]interface{}, len(methods))
	for i, elem := range batchElems {
		if elem.Error != nil {
			// Ревёрт на view-чтении: по этому адресу нет токена.
			return entity.TokenInfo{}, fmt.Errorf("%w: %s call reverted for %s: %v", entity.ErrInvalidToken, methods[i], tokenAddress, elem.Error)
		}
		raw, ok := elem.Result.(*hexutil.Bytes)
		if !ok || raw == nil || len(*raw) == 0 {
			// Пустой ответ eth_call означает отсутствие кода контракта.
			return entity.TokenInfo{}, fmt.Errorf("%w: no contract code or empty %s result for %s", entity.ErrInvalidToken, methods[i], tokenAddress)
		}
		values, err := parsedERC20ABI.Unpack(methods[i], *raw)
		if err != nil || len(values) == 0 {
			return entity.TokenInfo{}, fmt.Errorf("%w: failed to unpack %s result for %s", entity.ErrInvalidToken, methods[i], tokenAddress)
		}
		unpacked[i] = values
	}

	decimals, ok := unpacked[0][0].(uint8)
	if !ok {
		return entity.TokenInfo{}, fmt.Errorf("%w: decimals for %s is not uint8, got %T", entity.ErrInvalidToken, tokenAddress, unpacked[0][0])
	}
	symbol, ok := unpacked[1][0].(string)
	if !ok {
		return entity.TokenInfo{}, fmt.Errorf("%w: symbol for %s is not string, got %T", entity.ErrInvalidToken, tokenAddress, unpacked[1][0])
	}
	name, ok := unpacked[2][0].(string)
	if !ok {
		return entity.TokenInfo{}, fmt.Errorf("%w: name for %s is not string, got %T", entity.ErrInvalidToken, tokenAddress, unpacked[2][0])
	}

	info = entity.TokenInfo{
		Address:  addr.Hex(),
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}

	c.tokenMetaMu.Lock()
	c.tokenMeta[addr] = info
	c.tokenMetaMu.Unlock()

	return info, nil
}

// GetAmountsOut simulates a V2 swap along path via router.getAmountsOut.
func (c *EVMClient) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []string) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path must contain at least 2 tokens, got %d", len(path))
	}

	pathAddrs := make([]common.Address, len(path))
	for i, token := range path {
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("%w: path element %s is not a hex address", entity.ErrInvalidToken, token)
		}
		pathAddrs[i] = common.HexToAddress(token)
	}

	callData, err := parsedRouterABI.Pack("getAmountsOut", amountIn, pathAddrs)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getAmountsOut call: %w", err)
	}

	raw, err := c.call(ctx, c.v2Router, callData)
	if err != nil {
		return nil, err
	}

	values, err := parsedRouterABI.Unpack("getAmountsOut", raw)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("failed to unpack getAmountsOut result: %w", err)
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to assert getAmountsOut result to []*big.Int, got %T", values[0])
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("router returned %d amounts for a %d-hop path", len(amounts), len(path))
	}
	return amounts, nil
}

// QuoteExactInputSingle simulates a V3 single-pool swap via the quoter.
func (c *EVMClient) QuoteExactInputSingle(ctx context.Context, tokenIn, tokenOut string, feeTier uint32, amountIn *big.Int) (*big.Int, error) {
	if !common.IsHexAddress(tokenIn) || !common.IsHexAddress(tokenOut) {
		return nil, fmt.Errorf("%w: tokenIn/tokenOut must be hex addresses", entity.ErrInvalidToken)
	}

	params := quoteExactInputSingleParams{
		TokenIn:           common.HexToAddress(tokenIn),
		TokenOut:          common.HexToAddress(tokenOut),
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0), // нет ценового лимита
	}

	callData, err := parsedQuoterABI.Pack("quoteExactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack quoteExactInputSingle call: %w", err)
	}

	raw, err := c.call(ctx, c.v3Quoter, callData)
	if err != nil {
		return nil, err
	}

	values, err := parsedQuoterABI.Unpack("quoteExactInputSingle", raw)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("failed to unpack quoteExactInputSingle result: %w", err)
	}
	amountOut, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to assert quoted amountOut to *big.Int, got %T", values[0])
	}
	return amountOut, nil
}

// call performs a bounded eth_call against the given contract.
func (c *EVMClient) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	raw, err := c.ethClient.CallContract(rpcCallCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: eth_call to %s: %v", entity.ErrUpstreamTimeout, to.Hex(), err)
		}
		// Ревёрт симуляции — штатный ответ "пула нет", ошибку не
		// классифицируем: каскад выше решает, что делать дальше.
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("eth_call to %s returned empty result", to.Hex())
	}
	return raw, nil
}
