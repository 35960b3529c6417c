// Package observable classifies the observables handed over by the platform
// and maps them to the Vysion lookup endpoints.
package observable

import (
	"fmt"
	"regexp"
)

type Kind int

const (
	Unknown Kind = iota
	URL
	Email
	Bitcoin
	Ethereum
	Monero
)

func (k Kind) String() string {
	switch k {
	case URL:
		return "url"
	case Email:
		return "email"
	case Bitcoin:
		return "bitcoin-address"
	case Ethereum:
		return "ethereum-address"
	case Monero:
		return "monero-address"
	default:
		return "unknown"
	}
}

// Endpoint returns the Vysion lookup endpoint suffix for the kind.
// Unknown has no endpoint.
func (k Kind) Endpoint() (string, bool) {
	switch k {
	case URL:
		return "url/", true
	case Email:
		return "email/", true
	case Bitcoin:
		return "btc/", true
	case Ethereum:
		return "eth/", true
	case Monero:
		return "xmr/", true
	default:
		return "", false
	}
}

// Tag is the short form used in indicator names.
func (k Kind) Tag() string {
	switch k {
	case Bitcoin:
		return "BTC"
	case Ethereum:
		return "ETH"
	case Monero:
		return "XMR"
	default:
		return k.String()
	}
}

func (k Kind) IsWallet() bool {
	return k == Bitcoin || k == Ethereum || k == Monero
}

var (
	bitcoinLegacy = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	bitcoinBech32 = regexp.MustCompile(`^bc1[qz][a-z0-9]{39,59}$`)
	monero        = regexp.MustCompile(`^4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}$`)
	ethereum      = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// Classify maps a wallet address to its currency. Rules are checked in order
// and the first match wins; anything else is Unknown.
func Classify(address string) Kind {
	switch {
	case bitcoinLegacy.MatchString(address) || bitcoinBech32.MatchString(address):
		return Bitcoin
	case monero.MatchString(address):
		return Monero
	case ethereum.MatchString(address):
		return Ethereum
	default:
		return Unknown
	}
}

// Platform entity types accepted for enrichment.
const (
	EntityURL    = "Url"
	EntityEmail  = "Email-Addr"
	EntityWallet = "Cryptocurrency-Wallet"
)

// Resolve determines the kind of an observable from its platform entity type
// and value. Wallets are classified by address format.
func Resolve(entityType, value string) (Kind, error) {
	switch entityType {
	case EntityURL:
		return URL, nil
	case EntityEmail:
		return Email, nil
	case EntityWallet:
		kind := Classify(value)
		if kind == Unknown {
			return Unknown, ErrUnclassifiable
		}
		return kind, nil
	default:
		return Unknown, fmt.Errorf("%w: %s", ErrUnsupportedEntity, entityType)
	}
}
