package api

import (
	"encoding/hex"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"PasskeyWallet/internal/agent"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/internal/task"
)

const maxBodyBytes = 16 << 10

// handleWalletStatus 返回会话状态。
// @Summary   Session status
// @Tags      wallet
// @Produce   json
// @Success   200  {object}  wallet.Status
// @Security  BearerAuth
// @Router    /wallet [get]
func (s *Server) handleWalletStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.wallet.Status())
}

// handleCreateWallet 创建或加载通行密钥钱包。
// @Summary   Create passkey wallet
// @Tags      wallet
// @Produce   json
// @Success   200  {object}  WalletResponse
// @Failure   403  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /wallet [post]
func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	handle, err := s.wallet.CreateWallet(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		ID:        handle.ID,
		Address:   handle.Address,
		PublicKey: hex.EncodeToString(handle.PublicKey),
		Network:   s.wallet.Network(),
	})
}

// handleLoadWallet 通过两次挑战签名恢复已有钱包。
// @Summary   Load existing passkey wallet
// @Tags      wallet
// @Produce   json
// @Success   200  {object}  WalletResponse
// @Failure   403  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /wallet/load [post]
func (s *Server) handleLoadWallet(w http.ResponseWriter, r *http.Request) {
	handle, err := s.wallet.LoadWallet(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{
		ID:        handle.ID,
		Address:   handle.Address,
		PublicKey: hex.EncodeToString(handle.PublicKey),
		Network:   s.wallet.Network(),
	})
}

// handleWalletQR 以 PNG 返回钱包地址二维码。
// @Summary   Wallet address QR code
// @Tags      wallet
// @Produce   png
// @Param     size  query  int  false  "image size in pixels"
// @Success   200
// @Failure   409  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /wallet/qr [get]
func (s *Server) handleWalletQR(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.wallet.Wallet()
	if !ok {
		s.writeError(w, xerrors.New(xerrors.CodePrecondition, "Please create or load a passkey wallet first."))
		return
	}
	size := parseLimit(r.URL.Query().Get("size"), 256)
	if size > 1024 {
		size = 1024
	}
	png, err := qrcode.Encode(handle.Address, qrcode.Medium, size)
	if err != nil {
		s.writeError(w, xerrors.Wrap(xerrors.CodeUnknown, err, "failed to render QR code"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleBalance 查询余额并更新反馈。
// @Summary   Check balance
// @Tags      wallet
// @Produce   json
// @Success   200  {object}  BalanceResponse
// @Failure   409  {object}  ErrorResponse
// @Failure   502  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /wallet/balance [get]
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	mist, err := s.wallet.CheckBalance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	handle, _ := s.wallet.Wallet()
	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: handle.Address,
		Mist:    mist.String(),
		SUI:     sui.FormatBalance(mist),
	})
}

// handleFaucet 向测试网水龙头申请代币。
// @Summary   Request faucet tokens
// @Tags      wallet
// @Produce   json
// @Success   202  {object}  StatusMessage
// @Failure   409  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /wallet/faucet [post]
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if err := s.wallet.RequestFaucet(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, StatusMessage{Status: "requested", Message: s.lastFeedback()})
}

// handleCreateTransaction 构建未签名交易。
// @Summary   Create transaction draft
// @Tags      transactions
// @Accept    json
// @Produce   json
// @Param     body  body  TransferRequest  true  "recipient and amount"
// @Success   201  {object}  DraftResponse
// @Failure   400  {object}  ErrorResponse
// @Failure   422  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /transactions [post]
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !s.decode(w, r, &req) {
		return
	}
	draft, err := s.wallet.Create(r.Context(), req.Recipient, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draftResponse(draft))
}

// handleSignTransaction 使用通行密钥签名当前草稿。
// @Summary   Sign current draft
// @Tags      transactions
// @Produce   json
// @Success   200  {object}  StatusMessage
// @Failure   409  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /transactions/sign [post]
func (s *Server) handleSignTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.wallet.Sign(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusMessage{Status: "signed", Message: s.lastFeedback()})
}

// handleSendTransaction 广播已签名交易。
// @Summary   Send signed transaction
// @Tags      transactions
// @Produce   json
// @Success   200  {object}  BroadcastResponse
// @Failure   409  {object}  ErrorResponse
// @Failure   502  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /transactions/send [post]
func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request) {
	result, err := s.wallet.Send(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, broadcastResponse(result))
}

// handleSubmitCommand 将自然语言指令加入队列。
// @Summary   Submit natural-language command
// @Tags      commands
// @Accept    json
// @Produce   json
// @Param     body  body  CommandRequest  true  "command text"
// @Success   202  {object}  task.Task
// @Failure   400  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /commands [post]
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	if !s.requireCommands(w) {
		return
	}
	var req CommandRequest
	if !s.decode(w, r, &req) {
		return
	}
	cmd, err := s.commands.Submit(r.Context(), agent.CommandRequest{ID: req.ID, Text: req.Text})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, cmd)
}

// handleListCommands 查询指令日志。
// @Summary   List commands
// @Tags      commands
// @Produce   json
// @Param     limit   query  int     false  "page size"
// @Param     offset  query  int     false  "offset"
// @Param     status      query  string  false  "comma separated statuses"
// @Param     intent      query  string  false  "check_balance, transfer or unrecognized"
// @Param     recipient   query  string  false  "resolved recipient address"
// @Param     error_code  query  string  false  "failure code, e.g. NETWORK"
// @Param     sent        query  bool    false  "only commands with (true) or without (false) a digest"
// @Param     since       query  string  false  "created at or after, Unix seconds or RFC3339"
// @Param     q           query  string  false  "text, recipient or digest substring"
// @Param     order       query  string  false  "asc or desc"
// @Success   200  {array}  task.Task
// @Security  BearerAuth
// @Router    /commands [get]
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if !s.requireCommands(w) {
		return
	}
	query, err := task.ParseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	cmds, err := s.commands.List(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmds)
}

// handleCommandStats 返回指令统计。
// @Summary   Command journal statistics
// @Tags      commands
// @Produce   json
// @Success   200  {object}  task.Stats
// @Security  BearerAuth
// @Router    /commands/stats [get]
func (s *Server) handleCommandStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireCommands(w) {
		return
	}
	stats, err := s.commands.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCommandDetail 返回单条指令。
// @Summary   Get command
// @Tags      commands
// @Produce   json
// @Param     id  path  string  true  "command id"
// @Success   200  {object}  task.Task
// @Failure   404  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /commands/{id} [get]
func (s *Server) handleCommandDetail(w http.ResponseWriter, r *http.Request) {
	if !s.requireCommands(w) {
		return
	}
	id := strings.TrimSpace(mux.Vars(r)["id"])
	cmd, err := s.commands.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// @Summary   List address-book aliases
// @Tags      address-book
// @Produce   json
// @Success   200  {array}  addressbook.Entry
// @Security  BearerAuth
// @Router    /address-book [get]
func (s *Server) handleListAliases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.book.Entries())
}

// @Summary   Add or replace an alias
// @Tags      address-book
// @Accept    json
// @Produce   json
// @Param     body  body  AliasRequest  true  "alias and address"
// @Success   201  {object}  addressbook.Entry
// @Failure   400  {object}  ErrorResponse
// @Security  BearerAuth
// @Router    /address-book [post]
func (s *Server) handleAddAlias(w http.ResponseWriter, r *http.Request) {
	if s.book == nil {
		s.writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "address book is not configured"))
		return
	}
	var req AliasRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.book.Add(req.Alias, req.Address); err != nil {
		s.writeError(w, xerrors.Wrap(xerrors.CodeValidation, err, "invalid alias"))
		return
	}
	addr, _ := s.book.Lookup(req.Alias)
	writeJSON(w, http.StatusCreated, map[string]string{"alias": strings.ToLower(strings.TrimSpace(req.Alias)), "address": addr})
}

// @Summary   Latest feedback line
// @Tags      feedback
// @Produce   json
// @Success   200  {object}  feedback.Message
// @Security  BearerAuth
// @Router    /feedback [get]
func (s *Server) handleFeedback(w http.ResponseWriter, _ *http.Request) {
	if s.feedback == nil {
		writeJSON(w, http.StatusOK, StatusMessage{Status: "empty"})
		return
	}
	writeJSON(w, http.StatusOK, s.feedback.Last())
}

func (s *Server) requireCommands(w http.ResponseWriter) bool {
	if s.commands == nil {
		s.writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "command queue is not configured"))
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "request body is not valid JSON"))
		return false
	}
	return true
}

func (s *Server) lastFeedback() string {
	if s.feedback == nil {
		return ""
	}
	return s.feedback.Last().Text
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := ErrorBody{
		Code:     string(xerrors.CodeOf(err)),
		Message:  xerrors.UserMessage(err),
		Feedback: s.lastFeedback(),
	}
	writeJSON(w, statusFor(err), ErrorResponse{Error: body})
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if stdErrors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument, xerrors.CodeValidation, xerrors.CodeInterpret, task.CodeTaskValidation:
		return http.StatusBadRequest
	case xerrors.CodeResolution, xerrors.CodeInsufficientFunds, xerrors.CodeNoFunds:
		return http.StatusUnprocessableEntity
	case xerrors.CodePrecondition, task.CodeTaskConflict, task.CodeTaskCompleted:
		return http.StatusConflict
	case xerrors.CodeCredential:
		return http.StatusForbidden
	case task.CodeTaskNotFound:
		return http.StatusNotFound
	case xerrors.CodeNetwork:
		return http.StatusBadGateway
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
