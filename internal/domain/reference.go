package domain

// DefaultReferenceTokenAddress is the wrapped SOL mint, the default
// valuation denominator when REFERENCE_TOKEN_ADDRESS is unset.
const DefaultReferenceTokenAddress = "So11111111111111111111111111111111111111112"

// DefaultReferenceTokenSymbol is the symbol of the default reference token.
const DefaultReferenceTokenSymbol = "SOL"
