// Package api exposes the wallet session over REST: passkey wallet
// lifecycle, balance and faucet, the create/sign/send transaction stages,
// queued natural-language commands and the latest feedback line.
//
// @title        Passkey Wallet API
// @version      1.0
// @description  Passkey-secured Sui wallet driven by natural-language commands.
// @BasePath     /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package api
