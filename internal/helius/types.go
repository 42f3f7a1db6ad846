package helius

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // start searching backwards from this signature
	Until  string // search until this signature
	Limit  int    // maximum number of signatures to return
}

// Token standard values carried on token transfers.
const (
	TokenStandardFungible = "Fungible"
	TokenStandardNFT      = "NonFungible"
)

// EnhancedTransaction is a parsed transaction from the enhanced transactions
// API. Events.Swap is present only when the venue emitted a structured swap
// event; TokenTransfers is always populated and feeds the fallback parser.
type EnhancedTransaction struct {
	Signature        string           `json:"signature"`
	Slot             int64            `json:"slot"`
	Timestamp        int64            `json:"timestamp"` // unix seconds
	Type             string           `json:"type"`
	Source           string           `json:"source"` // venue identifier
	Fee              int64            `json:"fee"`    // lamports
	FeePayer         string           `json:"feePayer"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	TransactionError *TxError         `json:"transactionError"`
	Events           Events           `json:"events"`
}

// Failed reports whether the transaction errored on-chain.
func (t *EnhancedTransaction) Failed() bool {
	return t.TransactionError != nil
}

// NativeTransfer is a SOL movement between accounts.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// TokenTransfer is an SPL token movement between accounts.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"` // decimal-adjusted
	TokenStandard   string  `json:"tokenStandard"`
}

// TxError is the on-chain error attached to a failed transaction.
type TxError struct {
	Error string `json:"error"`
}

// Events holds structured event data attached by the upstream parser.
type Events struct {
	Swap *SwapEvent `json:"swap"`
}

// SwapEvent is a structured swap parsed by the upstream indexer.
type SwapEvent struct {
	NativeInput  *NativeAmount `json:"nativeInput"`
	NativeOutput *NativeAmount `json:"nativeOutput"`
	TokenInputs  []SwapToken   `json:"tokenInputs"`
	TokenOutputs []SwapToken   `json:"tokenOutputs"`
}

// NativeAmount is a SOL amount tied to an account.
type NativeAmount struct {
	Account string `json:"account"`
	Amount  string `json:"amount"` // lamports as string
}

// SwapToken is one token leg of a structured swap event.
type SwapToken struct {
	UserAccount    string         `json:"userAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is a raw amount with its decimal scale.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int    `json:"decimals"`
}
