package wallet

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"PasskeyWallet/internal/balance"
	"PasskeyWallet/internal/credential"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/faucet"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/observability/metrics"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/pkg/logger"
)

// MsgWalletRequired is published whenever an operation needs a wallet and
// none has been created or loaded.
const MsgWalletRequired = "Please create or load a passkey wallet first."

// Resolver maps an alias to an address, passing unknown input through.
type Resolver interface {
	Resolve(input string) string
}

// Suggester is optionally implemented by resolvers that can propose a close
// alias for an unknown one.
type Suggester interface {
	Suggest(input string) (string, bool)
}

// Orchestrator runs the create, sign and send stages for one session. Every
// public method holds the session lock for its whole duration, so at most
// one stage or pipeline runs at a time.
type Orchestrator struct {
	mu sync.Mutex
	s  session

	ledger   ledger.Client
	signer   credential.Provider
	resolver Resolver
	balance  *balance.Service
	feedback feedback.Publisher
	faucet   faucet.Faucet
	now      func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithFeedback sets the status channel.
func WithFeedback(fb feedback.Publisher) Option {
	return func(o *Orchestrator) {
		if fb != nil {
			o.feedback = fb
		}
	}
}

// WithBalance shares an existing balance service.
func WithBalance(svc *balance.Service) Option {
	return func(o *Orchestrator) {
		if svc != nil {
			o.balance = svc
		}
	}
}

// WithFaucet enables test token requests.
func WithFaucet(f faucet.Faucet) Option {
	return func(o *Orchestrator) { o.faucet = f }
}

// New creates an orchestrator with an empty session.
func New(client ledger.Client, signer credential.Provider, resolver Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		s:        session{state: StateIdle},
		ledger:   client,
		signer:   signer,
		resolver: resolver,
		feedback: feedback.Discard{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.balance == nil {
		o.balance = balance.NewService(client, o.feedback)
	}
	return o
}

// Status returns a snapshot of the session.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.status(o.network())
}

// Wallet returns the session wallet, if any.
func (o *Orchestrator) Wallet() (credential.Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.wallet == nil {
		return credential.Handle{}, false
	}
	return *o.s.wallet, true
}

// Draft returns a copy of the active draft, if any.
func (o *Orchestrator) Draft() (Draft, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.draft == nil {
		return Draft{}, false
	}
	return *o.s.draft, true
}

// Network returns the ledger network name.
func (o *Orchestrator) Network() string { return o.network() }

func (o *Orchestrator) network() string {
	if o.ledger == nil {
		return ""
	}
	return o.ledger.Network()
}

// CreateWallet registers a new passkey, or reuses the one already held by
// the credential provider, and makes it the session wallet.
func (o *Orchestrator) CreateWallet(ctx context.Context) (credential.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.feedback.Publish("Creating passkey wallet…")
	handle, err := o.signer.CreateOrLoad(ctx)
	if err != nil {
		return credential.Handle{}, o.credentialFailure("create passkey", err)
	}
	o.adopt(ctx, handle, "created")
	return handle, nil
}

// LoadWallet recovers the device-held passkey with two challenge
// signatures and makes it the session wallet.
func (o *Orchestrator) LoadWallet(ctx context.Context) (credential.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.feedback.Publish("Loading passkey wallet, please confirm twice…")
	handle, err := credential.Recover(ctx, o.signer)
	if err != nil {
		return credential.Handle{}, o.credentialFailure("load passkey", err)
	}
	o.adopt(ctx, handle, "loaded")
	return handle, nil
}

func (o *Orchestrator) adopt(ctx context.Context, handle credential.Handle, verb string) {
	h := handle
	o.s.wallet = &h
	o.s.resetTransaction()
	o.balance.Reset()

	logger.Audit().Info("wallet_"+verb, "address", handle.Address, "network", o.network())
	o.feedback.Publish(fmt.Sprintf("Wallet %s: %s", verb, handle.Address))
	// A failed initial refresh only leaves the cache empty.
	if _, err := o.balance.Fetch(ctx, handle.Address); err != nil {
		logger.Named("wallet").Warn("initial balance fetch failed", "error", err)
	}
}

func (o *Orchestrator) credentialFailure(action string, err error) error {
	wrapped := xerrors.Wrap(xerrors.CodeCredential, err, fmt.Sprintf("could not %s", action))
	if stdErrors.Is(err, credential.ErrCancelled) {
		wrapped = xerrors.Wrap(xerrors.CodeCredential, err, fmt.Sprintf("%s cancelled", action))
	}
	logger.Named("wallet").Warn("credential operation failed", "action", action, "error", err)
	o.feedback.Publish(wrapped.Message())
	return wrapped
}

// requireWallet reports the precondition failure without touching the
// network.
func (o *Orchestrator) requireWallet() (*credential.Handle, error) {
	if o.s.wallet == nil {
		o.feedback.Publish(MsgWalletRequired)
		return nil, xerrors.New(xerrors.CodePrecondition, MsgWalletRequired)
	}
	return o.s.wallet, nil
}

// CheckBalance refreshes and announces the wallet balance.
func (o *Orchestrator) CheckBalance(ctx context.Context) (*big.Int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, err := o.requireWallet()
	if err != nil {
		return nil, err
	}
	return o.balance.Refresh(ctx, w.Address, true)
}

// RequestFaucet asks the network faucet to fund the wallet.
func (o *Orchestrator) RequestFaucet(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, err := o.requireWallet()
	if err != nil {
		return err
	}
	if o.faucet == nil {
		msg := fmt.Sprintf("No faucet is available on %s.", o.network())
		o.feedback.Publish(msg)
		return xerrors.New(xerrors.CodePrecondition, msg)
	}

	o.feedback.Publish("Requesting test SUI from the faucet…")
	if err := o.faucet.RequestTokens(ctx, w.Address); err != nil {
		wrapped := xerrors.Wrap(xerrors.CodeNetwork, err, "faucet request failed")
		o.feedback.Publish(wrapped.Message())
		return wrapped
	}
	logger.Audit().Info("faucet_requested", "address", w.Address, "network", o.network())
	o.feedback.Publish("Faucet request accepted, funds arrive shortly.")
	return nil
}

// Create builds a new draft, replacing any previous draft and signature.
func (o *Orchestrator) Create(ctx context.Context, recipientRaw, amount string) (*Draft, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.create(ctx, recipientRaw, amount)
}

// Sign signs the active draft.
func (o *Orchestrator) Sign(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sign(ctx)
}

// Send broadcasts the signed draft.
func (o *Orchestrator) Send(ctx context.Context) (*BroadcastResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(ctx)
}

// Transfer runs create, sign and send in order, stopping at the first
// failure. Artifacts of completed stages stay available for manual retry.
func (o *Orchestrator) Transfer(ctx context.Context, recipientRaw, amount string) (*BroadcastResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.create(ctx, recipientRaw, amount); err != nil {
		return nil, err
	}
	if err := o.sign(ctx); err != nil {
		return nil, err
	}
	return o.send(ctx)
}

func (o *Orchestrator) create(ctx context.Context, recipientRaw, amount string) (draft *Draft, err error) {
	start := o.now()
	defer func() { metrics.ObserveStage("create", err, o.now().Sub(start)) }()

	w, err := o.requireWallet()
	if err != nil {
		return nil, err
	}

	mist, err := sui.ParseAmount(amount)
	if err != nil {
		o.feedback.Publish(xerrors.UserMessage(err))
		return nil, err
	}

	recipient, err := o.resolveRecipient(recipientRaw)
	if err != nil {
		o.feedback.Publish(xerrors.UserMessage(err))
		return nil, err
	}

	if cached, ok := o.balance.Cached(w.Address); ok && cached.Cmp(mist) < 0 {
		err := xerrors.New(xerrors.CodeInsufficientFunds,
			fmt.Sprintf("insufficient balance: have %s SUI, need %s SUI", sui.FormatBalance(cached), sui.FormatAmount(mist)))
		o.feedback.Publish(err.Message())
		return nil, err
	}

	// From here on the previous draft is gone whatever the outcome.
	o.s.resetTransaction()
	o.feedback.Publish("Preparing transaction…")

	coins, err := o.ledger.GetCoins(ctx, w.Address, sui.CoinType)
	if err != nil {
		return nil, o.stageFailure(xerrors.Wrap(xerrors.CodeNetwork, err, "could not list coins"))
	}
	if len(coins) == 0 {
		return nil, o.stageFailure(xerrors.New(xerrors.CodeNoFunds, "wallet holds no SUI coins, request funds from the faucet first"))
	}

	txBytes, err := o.ledger.BuildTransfer(ctx, sui.TransferSpec{
		Sender:    w.Address,
		Recipient: recipient,
		Amount:    mist,
		Payment:   ledger.PaymentRefs(coins),
		GasPrice:  sui.GasPrice,
		GasBudget: sui.GasBudget,
	})
	if err != nil {
		return nil, o.stageFailure(xerrors.Wrap(xerrors.CodeNetwork, err, "could not build transaction"))
	}

	o.s.draft = &Draft{
		Sender:    w.Address,
		Recipient: recipient,
		Amount:    mist,
		TxBytes:   txBytes,
		Digest:    sui.TransactionDigest(txBytes),
		CreatedAt: o.now(),
	}
	o.s.state = StateCreated
	logger.Audit().Info("transaction_created",
		"sender", w.Address, "recipient", recipient, "amount_mist", mist.String(), "digest", o.s.draft.Digest)
	o.feedback.Publish(fmt.Sprintf("Transaction created: send %s SUI to %s.", sui.FormatAmount(mist), sui.ShortAddress(recipient)))

	d := *o.s.draft
	return &d, nil
}

// resolveRecipient maps the raw token to a canonical address and explains
// which kind of input was wrong when it cannot.
func (o *Orchestrator) resolveRecipient(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	resolved := raw
	if o.resolver != nil {
		resolved = o.resolver.Resolve(raw)
	}
	addr, err := sui.NormalizeAddress(resolved)
	if err == nil {
		return addr, nil
	}

	switch {
	case resolved != raw:
		return "", xerrors.New(xerrors.CodeResolution,
			fmt.Sprintf("alias %q maps to an invalid address %q", raw, resolved),
			xerrors.WithMetadata("alias", raw))
	case looksLikeAddress(raw):
		return "", xerrors.New(xerrors.CodeResolution,
			fmt.Sprintf("malformed address %q: expected 64 hex characters", raw),
			xerrors.WithMetadata("recipient", raw))
	default:
		msg := fmt.Sprintf("unknown alias %q", raw)
		if sg, ok := o.resolver.(Suggester); ok {
			if alias, found := sg.Suggest(raw); found {
				msg += fmt.Sprintf(", did you mean %q?", alias)
			}
		}
		return "", xerrors.New(xerrors.CodeResolution, msg, xerrors.WithMetadata("alias", raw))
	}
}

// looksLikeAddress reports whether raw was meant as a literal address.
func looksLikeAddress(raw string) bool {
	if strings.HasPrefix(strings.ToLower(raw), "0x") {
		return true
	}
	if len(raw) < 32 {
		return false
	}
	for _, r := range raw {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) sign(ctx context.Context) (err error) {
	start := o.now()
	defer func() { metrics.ObserveStage("sign", err, o.now().Sub(start)) }()

	w, err := o.requireWallet()
	if err != nil {
		return err
	}
	if o.s.draft == nil || o.s.signature != nil || o.s.result != nil {
		err := xerrors.New(xerrors.CodePrecondition, "nothing to sign, create a transaction first")
		if o.s.signature != nil && o.s.result == nil {
			err = xerrors.New(xerrors.CodePrecondition, "transaction is already signed, send it or create a new one")
		}
		o.feedback.Publish(err.Message())
		return err
	}

	o.feedback.Publish("Waiting for passkey signature…")
	sig, err := o.signer.Sign(ctx, *w, o.s.draft.TxBytes)
	if err != nil {
		wrapped := o.credentialFailure("sign transaction", err)
		o.s.fail(wrapped)
		return wrapped
	}

	o.s.signature = sig
	o.s.lastErr = nil
	o.s.state = StateSigned
	logger.Audit().Info("transaction_signed", "sender", w.Address, "digest", o.s.draft.Digest)
	o.feedback.Publish("Transaction signed.")
	return nil
}

func (o *Orchestrator) send(ctx context.Context) (result *BroadcastResult, err error) {
	start := o.now()
	defer func() { metrics.ObserveStage("send", err, o.now().Sub(start)) }()

	w, err := o.requireWallet()
	if err != nil {
		return nil, err
	}
	if o.s.draft == nil || o.s.signature == nil || o.s.result != nil {
		err := xerrors.New(xerrors.CodePrecondition, "nothing to send, sign a transaction first")
		o.feedback.Publish(err.Message())
		return nil, err
	}

	o.feedback.Publish("Sending transaction…")
	res, err := o.ledger.ExecuteTransaction(ctx, o.s.draft.TxBytes, o.s.signature)
	if err != nil {
		return nil, o.stageFailure(xerrors.Wrap(xerrors.CodeNetwork, err, "could not send transaction"))
	}

	digest := res.Digest
	if digest == "" {
		digest = o.s.draft.Digest
	} else if digest != o.s.draft.Digest {
		logger.Named("wallet").Warn("ledger digest differs from local digest", "local", o.s.draft.Digest, "ledger", digest)
	}
	o.s.result = &BroadcastResult{
		Digest:      digest,
		Status:      res.Status,
		ExplorerURL: sui.ExplorerTxURL(o.network(), digest),
		SentAt:      o.now(),
	}
	o.s.lastErr = nil
	o.s.state = StateSent
	logger.Audit().Info("transaction_sent",
		"sender", w.Address, "recipient", o.s.draft.Recipient, "amount_mist", o.s.draft.Amount.String(), "digest", digest)

	msg := fmt.Sprintf("Transaction sent! Digest: %s", digest)
	if mist, err := o.balance.Fetch(ctx, w.Address); err == nil {
		msg += fmt.Sprintf(". New balance: %s SUI", sui.FormatBalance(mist))
	}
	o.feedback.Publish(msg)

	r := *o.s.result
	return &r, nil
}

// stageFailure moves the machine to failed and reports err.
func (o *Orchestrator) stageFailure(err *xerrors.Error) error {
	o.s.fail(err)
	logger.Named("wallet").Warn("transaction stage failed", "code", err.Code(), "error", err.Message())
	o.feedback.Publish(err.Message())
	return err
}
