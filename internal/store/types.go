// Package store implements the persisted multi-wallet document (spec §3,
// §4.1): wallets, rules, ledger, active selection, and network selection,
// with atomic durability and schema migration from a single-wallet
// predecessor.
package store

// AdapterKind tags which wallet-adapter variant a WalletEntry carries.
type AdapterKind string

const (
	AdapterLocalKey     AdapterKind = "local-key"
	AdapterPrivy        AdapterKind = "privy"
	AdapterCoinbaseCDP  AdapterKind = "coinbase-cdp"
	AdapterCrossmint    AdapterKind = "crossmint"
	AdapterBrowser      AdapterKind = "browser"
)

// LocalKeyConfig holds a self-custodial local signing key.
type LocalKeyConfig struct {
	PrivateKeyHex string `json:"privateKeyHex"`
}

// PrivyConfig holds Privy managed-wallet credentials and cached state.
type PrivyConfig struct {
	AppID     string  `json:"appId"`
	AppSecret string  `json:"appSecret"`
	WalletID  *string `json:"walletId,omitempty"`
	Address   *string `json:"address,omitempty"`
}

// CoinbaseCDPConfig holds Coinbase CDP managed-wallet credentials and cached state.
type CoinbaseCDPConfig struct {
	APIKeyID     string  `json:"apiKeyId"`
	APIKeySecret string  `json:"apiKeySecret"`
	WalletID     *string `json:"walletId,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// CrossmintConfig holds Crossmint managed-wallet credentials and cached state.
type CrossmintConfig struct {
	APIKey   string  `json:"apiKey"`
	WalletID *string `json:"walletId,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// BrowserConfig holds only the externally-supplied address; signing happens
// outside this process.
type BrowserConfig struct {
	Address string `json:"address"`
}

// AdapterConfig is a tagged variant over the five wallet-adapter kinds
// (spec §3, I3: exactly one variant populated per wallet).
type AdapterConfig struct {
	Kind AdapterKind `json:"kind"`

	LocalKey    *LocalKeyConfig    `json:"localKey,omitempty"`
	Privy       *PrivyConfig       `json:"privy,omitempty"`
	CoinbaseCDP *CoinbaseCDPConfig `json:"coinbaseCdp,omitempty"`
	Crossmint   *CrossmintConfig   `json:"crossmint,omitempty"`
	Browser     *BrowserConfig     `json:"browser,omitempty"`
}

// Rules holds the four spending-rule fields (spec §3, §4.3). Each decimal
// field is a USDC decimal string or nil for "no limit".
type Rules struct {
	MaxPerTransaction *string  `json:"maxPerTransaction"`
	DailyCap          *string  `json:"dailyCap"`
	AllowedServices   []string `json:"allowedServices"`
	BlockedServices   []string `json:"blockedServices"`
}

// TxStatus is a transaction record's lifecycle state.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSettled TxStatus = "settled"
	TxFailed  TxStatus = "failed"
)

// Transaction is one ledger entry (spec §3, I4/I5).
type Transaction struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Payee     string   `json:"payee"`
	Service   string   `json:"service"`
	Amount    string   `json:"amount"`
	Asset     string   `json:"asset"`
	Network   string   `json:"network"`
	TxHash    *string  `json:"txHash"`
	Status    TxStatus `json:"status"`
	Reason    string   `json:"reason"`
}

// AgentIdentity describes the agent operating a wallet (spec §3).
type AgentIdentity struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	AgentID       *string `json:"agentId,omitempty"`
	AgentRegistry *string `json:"agentRegistry,omitempty"`
	MetadataURI   *string `json:"metadataUri,omitempty"`
}

// WalletEntry is one wallet in the persisted document (spec §3).
type WalletEntry struct {
	ID            string         `json:"id"`
	Label         string         `json:"label"`
	CreatedAt     string         `json:"createdAt"`
	Frozen        bool           `json:"frozen"`
	Adapter       AdapterConfig  `json:"adapterConfig"`
	Rules         Rules          `json:"rules"`
	Transactions  []Transaction  `json:"transactions"`
	AgentIdentity *AgentIdentity `json:"agentIdentity,omitempty"`
}

// Document is the full persisted state (spec §3, schema V2).
type Document struct {
	Wallets        []*WalletEntry `json:"wallets"`
	ActiveWalletID *string        `json:"activeWalletId"`
	Network        string         `json:"network"`
}

// legacyDocument is the schema V1 single-wallet predecessor, recognized for
// migration by the absence of a "wallets" array (spec §6).
type legacyDocument struct {
	AdapterConfig AdapterConfig `json:"adapterConfig"`
	Wallet        struct {
		Label string `json:"label"`
	} `json:"wallet"`
	Rules        Rules         `json:"rules"`
	Transactions []Transaction `json:"transactions"`
}
