package configloader

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"price_aggregator/internal/domain/entity"
)

// ServerConfig holds HTTP server specific configurations.
type ServerConfig struct {
	Port                string `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ChainConfig holds the target chain and its RPC endpoints.
type ChainConfig struct {
	Name                     string   `yaml:"name"`
	ChainID                  uint64   `yaml:"chainID"`
	RPCURL                   string   `yaml:"rpcURL"`
	FallbackRPCURLs          []string `yaml:"fallbackRpcUrls"`
	ConnectionTimeoutSeconds int      `yaml:"connectionTimeoutSeconds"`
	RPCCallTimeoutSeconds    int      `yaml:"rpcCallTimeoutSeconds"`
}

// ContractsConfig holds the AMM protocol deployment addresses.
type ContractsConfig struct {
	V2Router string `yaml:"v2Router"`
	V3Quoter string `yaml:"v3Quoter"`
}

// RoutingConfig задает хаб-активы и порядок каскада котировок.
type RoutingConfig struct {
	// BaseAsset is the chain's native/gas token, used as the routing hub and
	// the USD reference (CELO on Celo).
	BaseAsset         string `yaml:"baseAsset"`
	BaseAssetDecimals uint8  `yaml:"baseAssetDecimals"`
	// StableAsset is the USD-pegged intermediate hop (cUSD on Celo).
	StableAsset         string `yaml:"stableAsset"`
	StableAssetDecimals uint8  `yaml:"stableAssetDecimals"`
	// FeeTiers are the concentrated-liquidity tiers, tried in ascending order.
	FeeTiers []uint32 `yaml:"feeTiers"`
	// ProtocolOrder is the version preference of the cascade. Историческая
	// концентрация ликвидности на V2 — это политика, а не константа.
	ProtocolOrder []string `yaml:"protocolOrder"`
}

// ManualPrice is a per-token override that short-circuits all derivation.
type ManualPrice struct {
	PriceUsd    float64 `yaml:"priceUsd"`
	PriceBase   float64 `yaml:"priceBase"`
	Note        string  `yaml:"note"`
	LastUpdated string  `yaml:"lastUpdated"`
}

// PricingConfig holds derivation parameters.
type PricingConfig struct {
	BasePriceCacheTTLSeconds int `yaml:"basePriceCacheTTLSeconds"`
	// FallbackBaseAssetUsd is the approximate base-asset USD price used when
	// the live reference lookup fails (RPC error, not absence of liquidity).
	// Во время сбоя RPC каждое производное значение зависит от этого курса.
	FallbackBaseAssetUsd float64                `yaml:"fallbackBaseAssetUsd"`
	ManualPrices         map[string]ManualPrice `yaml:"manualPrices"`
}

// DEXScreenerConfig holds DexScreener API specific configurations.
type DEXScreenerConfig struct {
	BaseURL              string  `yaml:"baseURL"`
	ChainID              string  `yaml:"chainID"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis"`
	RatePerSecond        float64 `yaml:"ratePerSecond"`
}

// CacheConfig holds the result cache TTL.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttlSeconds"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Chain       ChainConfig        `yaml:"chain"`
	Contracts   ContractsConfig    `yaml:"contracts"`
	Routing     RoutingConfig      `yaml:"routing"`
	Pricing     PricingConfig      `yaml:"pricing"`
	DEXScreener DEXScreenerConfig  `yaml:"dexScreener"`
	Cache       CacheConfig        `yaml:"cache"`
	// FiatRates maps currency code to its USD rate (USD = 1). Unknown codes
	// are treated as USD by the converter.
	FiatRates map[string]float64 `yaml:"fiatRates"`
	// Tokens is the well-known symbol -> address table served by /tokens.
	Tokens map[string]string `yaml:"tokens"`
}

// Load reads the YAML configuration file from the given path, applies
// defaults for omitted fields and validates required entries.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3000"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Chain.Name == "" {
		cfg.Chain.Name = "celo"
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 42220
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = "https://forno.celo.org"
	}
	if cfg.Chain.ConnectionTimeoutSeconds <= 0 {
		cfg.Chain.ConnectionTimeoutSeconds = 10
	}
	if cfg.Chain.RPCCallTimeoutSeconds <= 0 {
		cfg.Chain.RPCCallTimeoutSeconds = 10
	}

	if cfg.Routing.BaseAssetDecimals == 0 {
		cfg.Routing.BaseAssetDecimals = 18
	}
	if cfg.Routing.StableAssetDecimals == 0 {
		cfg.Routing.StableAssetDecimals = 18
	}
	if len(cfg.Routing.FeeTiers) == 0 {
		cfg.Routing.FeeTiers = []uint32{500, 3000, 10000}
	}
	// Каскад всегда пробует тиры по возрастанию.
	sort.Slice(cfg.Routing.FeeTiers, func(i, j int) bool {
		return cfg.Routing.FeeTiers[i] < cfg.Routing.FeeTiers[j]
	})
	if len(cfg.Routing.ProtocolOrder) == 0 {
		cfg.Routing.ProtocolOrder = []string{entity.ProtocolV2, entity.ProtocolV3}
	}

	if cfg.Pricing.BasePriceCacheTTLSeconds <= 0 {
		cfg.Pricing.BasePriceCacheTTLSeconds = 30
	}
	if cfg.Pricing.FallbackBaseAssetUsd <= 0 {
		cfg.Pricing.FallbackBaseAssetUsd = 0.65 // approximate CELO price
	}
	if cfg.Pricing.ManualPrices == nil {
		cfg.Pricing.ManualPrices = map[string]ManualPrice{}
	} else {
		// Поиск оверрайда идет по нижнему регистру; нормализуем ключи,
		// чтобы checksum-адрес в конфиге не промахивался молча.
		normalized := make(map[string]ManualPrice, len(cfg.Pricing.ManualPrices))
		for addr, price := range cfg.Pricing.ManualPrices {
			normalized[strings.ToLower(addr)] = price
		}
		cfg.Pricing.ManualPrices = normalized
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com/latest/dex"
	}
	if cfg.DEXScreener.ChainID == "" {
		cfg.DEXScreener.ChainID = "celo"
	}
	if cfg.DEXScreener.RequestTimeoutMillis <= 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 5000
	}
	if cfg.DEXScreener.RatePerSecond <= 0 {
		cfg.DEXScreener.RatePerSecond = 5
	}

	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 30
	}

	if len(cfg.FiatRates) == 0 {
		cfg.FiatRates = map[string]float64{
			"USD": 1,
			"EUR": 0.92,
			"GBP": 0.79,
			"JPY": 149.50,
			"CNY": 7.24,
			"INR": 83.12,
			"BRL": 4.97,
			"CAD": 1.36,
			"AUD": 1.52,
			"MXN": 17.08,
		}
	}
	if _, ok := cfg.FiatRates["USD"]; !ok {
		cfg.FiatRates["USD"] = 1
	}

	if cfg.Tokens == nil {
		cfg.Tokens = map[string]string{}
	}
}

func validate(cfg *Config) error {
	var missing []string
	if cfg.Contracts.V2Router == "" {
		missing = append(missing, "contracts.v2Router")
	}
	if cfg.Contracts.V3Quoter == "" {
		missing = append(missing, "contracts.v3Quoter")
	}
	if cfg.Routing.BaseAsset == "" {
		missing = append(missing, "routing.baseAsset")
	}
	if cfg.Routing.StableAsset == "" {
		missing = append(missing, "routing.stableAsset")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", entity.ErrConfiguration, strings.Join(missing, ", "))
	}

	for _, version := range cfg.Routing.ProtocolOrder {
		if version != entity.ProtocolV2 && version != entity.ProtocolV3 {
			return fmt.Errorf("%w: unknown protocol version %q in routing.protocolOrder", entity.ErrConfiguration, version)
		}
	}
	return nil
}
