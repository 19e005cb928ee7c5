package app

import (
	"net/http"

	"github.com/seyialao/payguard/internal/handler"
	"github.com/seyialao/payguard/internal/middleware"
	"github.com/seyialao/payguard/internal/verification"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.ErrorHandler, app.Logger, app.DB.User(), &app.Config)

	healthHandler := handler.NewHealthCheckHandler(app.ErrorHandler)

	authHandler := handler.NewAuthHandler(&handler.AuthHandler{
		UserRepo:     app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Helper:       app.Helper,
		Mailer:       app.Mailer,
		Config:       &app.Config,
		ErrHandler:   app.ErrorHandler,
	})

	transferHandler := handler.NewTransferHandler(&handler.TransferHandler{
		TransferRepo: app.DB.Transfer(),
		LedgerRepo:   app.DB.Ledger(),
		ProfileRepo:  app.DB.User(),
		ActivityRepo: app.DB.Activity(),
		Flow:         verification.New(app.FileUploader, app.DB.Transfer()),
		Cache:        app.Cache,
		Events:       app.Kafka,
		Helper:       app.Helper,
		ErrHandler:   app.ErrorHandler,
	})

	walletHandler := handler.NewWalletHandler(&handler.WalletHandler{
		ProfileRepo: app.DB.User(),
		LedgerRepo:  app.DB.Ledger(),
		ErrHandler:  app.ErrorHandler,
	})

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)

	mux.HandleFunc("POST /auth/register", authHandler.HandleAuthRegister)
	mux.HandleFunc("POST /auth/login", authHandler.HandleAuthLogin)

	requireAuth := middlewareRepo.RequireAuthenticatedUser

	mux.Handle("POST /transfers", requireAuth(http.HandlerFunc(transferHandler.HandleInitiateTransfer)))
	mux.Handle("GET /transfers/pending", requireAuth(http.HandlerFunc(transferHandler.HandlePendingTransfers)))
	mux.Handle("GET /transfers/history", requireAuth(http.HandlerFunc(transferHandler.HandleTransferHistory)))
	mux.Handle("GET /transfers/{id}", requireAuth(http.HandlerFunc(transferHandler.HandleTransferDetails)))
	mux.Handle("POST /transfers/{id}/verify", requireAuth(http.HandlerFunc(transferHandler.HandleVerifyTransfer)))
	mux.Handle("POST /transfers/{id}/approve", requireAuth(http.HandlerFunc(transferHandler.HandleApproveTransfer)))
	mux.Handle("POST /transfers/{id}/cancel", requireAuth(http.HandlerFunc(transferHandler.HandleCancelTransfer)))

	mux.Handle("GET /wallet/balance", requireAuth(http.HandlerFunc(walletHandler.HandleWalletBalance)))
	mux.Handle("GET /wallet/transactions", requireAuth(http.HandlerFunc(walletHandler.HandleWalletTransactions)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}
