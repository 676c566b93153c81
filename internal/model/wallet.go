package model

import "time"

// CryptoTypes lists every currency a user wallet is provisioned for.
// Wallet rows are created lazily on first access, one per currency.
var CryptoTypes = []string{"BTC", "ETH", "USDT", "LTC", "XRP", "DOGE", "BNB", "SOL"}

// ValidCryptoType reports whether t is a supported currency code.
func ValidCryptoType(t string) bool {
	for _, c := range CryptoTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Wallet is a per-user, per-currency balance ledger entry. The pair
// (UserID, CryptoType) is unique. The booking engine never touches
// wallets; crypto payments are confirmed manually off-ledger.
type Wallet struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CryptoType     string    `json:"cryptoType"`
	Balance        float64   `json:"balance"`
	PendingBalance float64   `json:"pendingBalance"`
	WalletAddress  *string   `json:"walletAddress"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
