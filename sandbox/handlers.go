package sandbox

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/auth"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/middleware"
	"github.com/vanillake254/BAHATI-YANGU/payment"
	"github.com/vanillake254/BAHATI-YANGU/session"
)

const detailBadCredentials = "No active account found with the given credentials"

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (s *Server) issue(user session.User) (tokenPair, error) {
	access, refresh, err := auth.GeneratePair(s.config.JWTSecret, user.ID, user.Email, s.clock.Now(), s.config.TokenTTL)
	return tokenPair{Access: access, Refresh: refresh}, err
}

// currentUser resolves the authenticated account. A token for an account
// that no longer exists is treated like an invalid token.
func (s *Server) currentUser(c *gin.Context) (int64, bool) {
	id, ok := auth.GetUserID(c)
	if ok {
		_, ok = s.ledger.User(id)
	}
	if !ok {
		detail(c, http.StatusUnauthorized, auth.DetailInvalidToken)
	}
	return id, ok
}

// requestLogger tags the sandbox logger with the request's trace id and user
func (s *Server) requestLogger(c *gin.Context, userID int64) zerolog.Logger {
	return logging.WithUserID(logging.WithTraceID(s.logger, middleware.GetTraceID(c)), userID)
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	var missing []*FieldError
	if req.Email == "" {
		missing = append(missing, &FieldError{Field: "email", Message: "This field is required."})
	}
	if req.Password == "" {
		missing = append(missing, &FieldError{Field: "password", Message: "This field is required."})
	}
	if len(missing) > 0 {
		fieldErrors(c, missing...)
		return
	}

	user, ok := s.ledger.Authenticate(req.Email, req.Password)
	if !ok {
		detail(c, http.StatusUnauthorized, detailBadCredentials)
		return
	}

	tokens, err := s.issue(user)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (s *Server) register(c *gin.Context) {
	var req session.RegisterPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := s.ledger.Register(req)
	if err != nil {
		s.handleError(c, err)
		return
	}

	tokens, err := s.issue(user)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
	})
}

func (s *Server) me(c *gin.Context) {
	id, ok := s.currentUser(c)
	if !ok {
		return
	}
	user, _ := s.ledger.User(id)
	c.JSON(http.StatusOK, user)
}

func (s *Server) walletDetail(c *gin.Context) {
	id, ok := s.currentUser(c)
	if !ok {
		return
	}
	w, _ := s.ledger.Wallet(id)
	c.JSON(http.StatusOK, w)
}

func (s *Server) transactions(c *gin.Context) {
	id, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.ledger.Transactions(id))
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (s *Server) deposit(c *gin.Context) {
	s.submitPayment(c, s.ledger.Deposit)
}

func (s *Server) withdraw(c *gin.Context) {
	s.submitPayment(c, s.ledger.Withdraw)
}

func (s *Server) submitPayment(c *gin.Context, submit func(int64, decimal.Decimal) (int64, error)) {
	id, ok := s.currentUser(c)
	if !ok {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		detail(c, http.StatusBadRequest, "Invalid amount.")
		return
	}

	txID, err := submit(id, *req.Amount)
	if err != nil {
		s.handleError(c, err)
		return
	}
	reqLogger := s.requestLogger(c, id)
	reqLogger.Info().Int64("transaction_id", txID).Str("amount", req.Amount.String()).Msg("Payment submitted")
	c.JSON(http.StatusCreated, gin.H{
		"transaction_id": txID,
		"status":         payment.StatusPending,
	})
}

func (s *Server) paymentStatus(c *gin.Context) {
	id, ok := s.currentUser(c)
	if !ok {
		return
	}

	txID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusNotFound, "Transaction not found.")
		return
	}

	tx, err := s.ledger.Poll(id, txID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (s *Server) wheel(c *gin.Context) {
	c.JSON(http.StatusOK, s.games.Wheel())
}

type playRequest struct {
	Stake      *decimal.Decimal `json:"stake"`
	Prediction string           `json:"prediction"`
	Choice     string           `json:"choice"`
}

func (s *Server) bindPlay(c *gin.Context) (int64, playRequest, bool) {
	id, ok := s.currentUser(c)
	if !ok {
		return 0, playRequest{}, false
	}
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Stake == nil {
		detail(c, http.StatusBadRequest, "Invalid stake amount.")
		return 0, playRequest{}, false
	}
	return id, req, true
}

func (s *Server) spin(c *gin.Context) {
	id, req, ok := s.bindPlay(c)
	if !ok {
		return
	}
	res, err := s.games.Spin(id, *req.Stake)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stake":        req.Stake,
		"result_label": res.Label,
		"multiplier":   res.Multiplier,
		"win_amount":   res.WinAmount,
		"is_win":       res.IsWin(),
		"balance":      res.Wallet.DisplayBalance(),
	})
}

func (s *Server) predict(c *gin.Context) {
	id, req, ok := s.bindPlay(c)
	if !ok {
		return
	}
	res, err := s.games.Predict(id, *req.Stake, req.Prediction)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stake":      req.Stake,
		"prediction": req.Prediction,
		"outcome":    res.Label,
		"is_win":     res.IsWin(),
		"multiplier": res.Multiplier,
		"win_amount": res.WinAmount,
		"balance":    res.Wallet.DisplayBalance(),
	})
}

func (s *Server) pickBox(c *gin.Context) {
	id, req, ok := s.bindPlay(c)
	if !ok {
		return
	}
	res, err := s.games.PickBox(id, *req.Stake, req.Choice)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stake":          req.Stake,
		"choice":         req.Choice,
		"revealed_label": res.Label,
		"multiplier":     res.Multiplier,
		"win_amount":     res.WinAmount,
		"is_win":         res.IsWin(),
		"balance":        res.Wallet.DisplayBalance(),
	})
}
