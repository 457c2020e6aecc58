package main

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// satoshisPerBTC and atomicPerXMR are the fixed exponents the spec names:
// BTC has 8 decimal places, XMR's atomic unit (piconero) has 12.
var (
	satoshisPerBTC = decimal.New(1, 8)
	atomicPerXMR   = decimal.New(1, 12)

	maxUint64 = new(big.Int).SetUint64(^uint64(0))
)

// BTCToSatoshis converts a display-precision BTC amount to an integer
// satoshi count, rejecting negative amounts and anything that would not
// fit in a u64 once converted.
func BTCToSatoshis(amount decimal.Decimal) (uint64, error) {
	return toAtomicUnits(amount, satoshisPerBTC, "BTC", "satoshis")
}

// SatoshisToBTC is the exact inverse of BTCToSatoshis.
func SatoshisToBTC(satoshis uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(satoshis), 0).Div(satoshisPerBTC)
}

// XMRToAtomic converts a display-precision XMR amount to its atomic unit
// (piconero), rejecting negatives and u64 overflow.
func XMRToAtomic(amount decimal.Decimal) (uint64, error) {
	return toAtomicUnits(amount, atomicPerXMR, "XMR", "atomic units")
}

// AtomicToXMR is the exact inverse of XMRToAtomic.
func AtomicToXMR(atomic uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(atomic), 0).Div(atomicPerXMR)
}

func toAtomicUnits(amount decimal.Decimal, scale decimal.Decimal, currency, unitName string) (uint64, error) {
	if amount.IsNegative() {
		return 0, ValidationErrorf("%s amount must not be negative: %s", currency, amount)
	}

	scaled := amount.Mul(scale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ValidationErrorf("%s amount %s is not representable in %s without rounding", currency, amount, unitName)
	}

	bi := scaled.BigInt()
	if bi.Sign() < 0 || bi.Cmp(maxUint64) > 0 {
		return 0, ValidationErrorf("%s amount %s overflows a u64 %s value", currency, amount, unitName)
	}

	return bi.Uint64(), nil
}

// iso4217Table is the subset of ISO 4217 currency codes the processor
// accepts for fiat wallets and payment requests, plus the crypto tickers
// this engine treats as first-class currencies alongside fiat.
var iso4217Table = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
	"CHF": 2,
	"CAD": 2,
	"AUD": 2,
	"BTC": 8,
	"XMR": 12,
}

// IsValidCurrency reports ISO 4217 table membership (plus the two crypto
// tickers this engine treats as currencies).
func IsValidCurrency(code string) bool {
	_, ok := iso4217Table[code]
	return ok
}

// CurrencyDecimals returns the number of fractional digits a currency's
// minor unit carries, used when rendering amounts into ISO 20022/SWIFT
// messages that expect currency-correct precision.
func CurrencyDecimals(code string) (int32, error) {
	dp, ok := iso4217Table[code]
	if !ok {
		return 0, ValidationErrorf("unknown currency code: %s", code)
	}
	return dp, nil
}

// RoundToCurrency rounds amount to the currency's minor-unit precision,
// half away from zero, in decimal arithmetic, never floating point.
func RoundToCurrency(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	dp, err := CurrencyDecimals(code)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Round(dp), nil
}

// decimalFromString parses an external wire value (webhook payload, bank
// statement line) into a Decimal, never via a float64 intermediate.
func decimalFromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ValidationErrorf("invalid decimal amount %q: %w", s, err)
	}
	return d, nil
}
