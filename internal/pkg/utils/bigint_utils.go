package utils

import (
	"fmt"
	"math/big"
	"strings"

	dexscreener_entity "price_aggregator/internal/entity"
)

// ParseUnits converts a human token amount (e.g. 1.5) into raw integer units
// scaled by the token's decimals. Аналог ethers.parseUnits.
func ParseUnits(amount float64, decimals uint8) (*big.Int, error) {
	if amount < 0 {
		return nil, fmt.Errorf("amount must be non-negative, got %f", amount)
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(big.NewFloat(amount), scale)

	raw, _ := scaled.Int(nil)
	return raw, nil
}

// FormatUnitsFloat converts raw integer units into a float token amount.
// Float64 precision is acceptable here: downstream consumers are fiat prices,
// not settlement amounts.
func FormatUnitsFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(amountFloat, divisor).Float64()
	return value
}

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0.0", nil
	}

	if decimals == 0 {
		return amount.String(), nil
	}

	amountFloat := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(amountFloat, divisor)

	formattedStr := value.Text('f', int(decimals))

	// Обрезаем хвостовые нули и точку: "1.2300" -> "1.23", "1." -> "1"
	if strings.Contains(formattedStr, ".") {
		formattedStr = strings.TrimRight(formattedStr, "0")
		formattedStr = strings.TrimRight(formattedStr, ".")
	}
	if strings.HasPrefix(formattedStr, ".") {
		formattedStr = "0" + formattedStr
	}
	if formattedStr == "" {
		if amount.Sign() == 0 {
			return "0", nil
		}
		return value.Text('f', 2), fmt.Errorf("formatting resulted in empty string for non-zero value")
	}

	return formattedStr, nil
}

// SafeDerefFloat64 безопасно разыменовывает указатель и получает float64.
// Принимает указатель на DEXLiquidity и функцию-геттер.
func SafeDerefFloat64(liquidity *dexscreener_entity.DEXLiquidity, getter func(dexscreener_entity.DEXLiquidity) float64) float64 {
	if liquidity == nil {
		return 0.0
	}
	return getter(*liquidity)
}
