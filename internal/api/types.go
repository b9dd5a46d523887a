package api

import (
	"time"

	"PasskeyWallet/internal/sui"
	"PasskeyWallet/internal/wallet"
)

// ErrorBody is the payload of every non-2xx JSON response.
type ErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Feedback string `json:"feedback,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WalletResponse describes the session wallet.
type WalletResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Network   string `json:"network"`
}

// BalanceResponse carries a balance in MIST and SUI.
type BalanceResponse struct {
	Address string `json:"address"`
	Mist    string `json:"mist"`
	SUI     string `json:"sui"`
}

// TransferRequest is the body of the create endpoint.
type TransferRequest struct {
	Recipient string `json:"recipient" example:"alice"`
	Amount    string `json:"amount" example:"0.5"`
}

// DraftResponse describes a created, unsigned transaction.
type DraftResponse struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Mist      string    `json:"mist"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
}

// BroadcastResponse describes a sent transaction.
type BroadcastResponse struct {
	Digest   string    `json:"digest"`
	Status   string    `json:"status"`
	Explorer string    `json:"explorer"`
	SentAt   time.Time `json:"sentAt"`
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text" example:"send 1 sui to alice"`
}

// AliasRequest adds an address-book entry.
type AliasRequest struct {
	Alias   string `json:"alias"`
	Address string `json:"address"`
}

// StatusMessage is a plain acknowledgement.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func draftResponse(d *wallet.Draft) DraftResponse {
	return DraftResponse{
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Amount:    sui.FormatAmount(d.Amount),
		Mist:      d.Amount.String(),
		Digest:    d.Digest,
		CreatedAt: d.CreatedAt,
	}
}

func broadcastResponse(r *wallet.BroadcastResult) BroadcastResponse {
	return BroadcastResponse{
		Digest:   r.Digest,
		Status:   r.Status,
		Explorer: r.ExplorerURL,
		SentAt:   r.SentAt,
	}
}
