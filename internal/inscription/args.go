// Package inscription builds the commit/reveal transaction pair an etching
// requires: the ordinals-style envelope that binds a rune name to a
// taproot script, the two transactions themselves, and the vbyte estimate
// used to size fees before a real UTXO selection happens.
package inscription

import (
	"encoding/base64"
	"fmt"

	"github.com/Fantasim/runeidx/internal/config"
	"github.com/Fantasim/runeidx/internal/runes"
)

// Terms mirrors runes.Terms at the argument-validation boundary, taking
// plain decimal strings instead of Lot so the HTTP layer doesn't need to
// know about big.Int.
type Terms struct {
	Amount      string
	Cap         uint64
	HeightStart *uint64
	HeightEnd   *uint64
	OffsetStart *uint64
	OffsetEnd   *uint64
}

// EtchingArgs is the user-supplied input to one etching request, validated
// once by check() before any transaction is built.
type EtchingArgs struct {
	RuneName        string // spaced name, e.g. "UNCOMMON•GOODS"
	Divisibility    *uint8
	Premine         string // decimal string, "" means no premine
	Symbol          *rune
	Terms           *Terms
	Turbo           bool
	LogoContentType string
	LogoBase64      string // "" means no logo
	PremineReceiver string // bitcoin address; required iff Premine != ""
}

// parsed holds the parsed, validated form of EtchingArgs, built once by
// check() and reused by the transaction builder so parsing never happens
// twice.
type parsed struct {
	SpacedRune   runes.SpacedRune
	Divisibility uint8
	Premine      runes.Lot
	Terms        *runes.Terms
	LogoContent  []byte
}

// check validates args, returning the parsed form on success. Every failure
// is a config.Err* validation sentinel — rejected synchronously, never
// retried, per the error-kind taxonomy.
func (a *EtchingArgs) check() (*parsed, error) {
	sr, err := runes.ParseSpacedRune(a.RuneName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidRuneName, err)
	}
	name := sr.Rune.String()
	if len(name) < config.MinRuneNameLength || len(name) > config.MaxRuneNameLength {
		return nil, fmt.Errorf("%w: name %q has length %d, want [%d,%d]",
			config.ErrInvalidRuneName, name, len(name), config.MinRuneNameLength, config.MaxRuneNameLength)
	}

	var divisibility uint8
	if a.Divisibility != nil {
		if *a.Divisibility > config.MaxDivisibility {
			return nil, fmt.Errorf("%w: %d", config.ErrDivisibilityRange, *a.Divisibility)
		}
		divisibility = *a.Divisibility
	}

	premine := runes.ZeroLot()
	if a.Premine != "" {
		premine, err = runes.LotFromString(a.Premine)
		if err != nil {
			return nil, fmt.Errorf("invalid premine %q: %w", a.Premine, err)
		}
		if a.PremineReceiver == "" {
			return nil, fmt.Errorf("%w: premine set without a receiver address", config.ErrInvalidConfig)
		}
	}

	var terms *runes.Terms
	if a.Terms != nil {
		if a.Terms.Cap == 0 {
			return nil, config.ErrZeroCap
		}
		amount, err := runes.LotFromString(a.Terms.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid terms amount %q: %w", a.Terms.Amount, err)
		}
		if amount.IsZero() {
			return nil, config.ErrZeroAmount
		}
		cap := a.Terms.Cap
		terms = &runes.Terms{
			Amount:      &amount,
			Cap:         &cap,
			HeightStart: a.Terms.HeightStart,
			HeightEnd:   a.Terms.HeightEnd,
			OffsetStart: a.Terms.OffsetStart,
			OffsetEnd:   a.Terms.OffsetEnd,
		}
	}

	var logo []byte
	if a.LogoBase64 != "" {
		logo, err = base64.StdEncoding.DecodeString(a.LogoBase64)
		if err != nil {
			return nil, fmt.Errorf("invalid logo base64: %w", err)
		}
		if len(logo) > config.MaxLogoSize {
			return nil, fmt.Errorf("%w: logo is %d bytes, max %d", config.ErrLogoTooLarge, len(logo), config.MaxLogoSize)
		}
		if a.LogoContentType == "" {
			return nil, fmt.Errorf("%w: logo present without a content type", config.ErrInvalidConfig)
		}
	}

	return &parsed{
		SpacedRune:   sr,
		Divisibility: divisibility,
		Premine:      premine,
		Terms:        terms,
		LogoContent:  logo,
	}, nil
}
