package sandbox

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/payment"
	"github.com/vanillake254/BAHATI-YANGU/session"
	"github.com/vanillake254/BAHATI-YANGU/wallet"
)

// Ledger row types beyond DEPOSIT and WITHDRAWAL
const (
	txGameStake     = "GAME_STAKE"
	txGameWin       = "GAME_WIN"
	txBonusCredit   = "BONUS_CREDIT"
	txReferralBonus = "REFERRAL_BONUS"

	providerMpesa    = "intasend"
	providerInternal = "internal"
)

var (
	signupBonus        = decimal.NewFromInt(100)
	referralRate       = decimal.RequireFromString("0.10")
	minPlaysBeforeCash = 2
	maxRewardedDeposit = 3
)

// FieldError is a per-field validation failure, rendered as
// {"field": ["message"]}
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

type account struct {
	user         session.User
	password     string
	wallet       wallet.Wallet
	referrerID   int64
	realDeposits int
	// plays counts stakes since the last successful deposit
	plays int
}

type entry struct {
	wallet.Transaction
	userID     int64
	finalState string
	polls      int
	outcome    Outcome
}

// Ledger is the sandbox's in-memory bookkeeping: accounts, wallets and
// every money movement. All methods are safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	script   Script
	settleAt int

	accounts map[int64]*account
	byEmail  map[string]int64
	entries  []*entry
	nextUser int64
	nextTx   int64
}

// NewLedger creates an empty ledger. Pending payments settle on the
// settleAfterPolls-th status poll, as decided by script.
func NewLedger(clock clockwork.Clock, script Script, settleAfterPolls int) *Ledger {
	if settleAfterPolls < 1 {
		settleAfterPolls = 1
	}
	if script == nil {
		script = DefaultScript()
	}
	return &Ledger{
		clock:    clock,
		script:   script,
		settleAt: settleAfterPolls,
		accounts: make(map[int64]*account),
		byEmail:  make(map[string]int64),
		nextUser: 1,
		nextTx:   1,
	}
}

// Register creates an account with the signup bonus in bonus_balance
func (l *Ledger) Register(payload session.RegisterPayload) (session.User, error) {
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return session.User{}, &FieldError{Field: "email", Message: "This field is required."}
	}
	number, err := session.NormalizeMpesaNumber(payload.MpesaNumber)
	if err != nil {
		return session.User{}, &FieldError{Field: "mpesa_number", Message: apperrors.UserMessage(err, "Enter a valid number.")}
	}
	if len(payload.Password) < 8 {
		return session.User{}, &FieldError{Field: "password", Message: "Ensure this field has at least 8 characters."}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byEmail[email]; exists {
		return session.User{}, &FieldError{Field: "email", Message: "user with this email already exists."}
	}

	var referrerID int64
	if code := strings.TrimSpace(payload.ReferralCode); code != "" {
		if referrer, ok := lo.Find(lo.Values(l.accounts), func(a *account) bool { return a.user.ReferralCode == code }); ok {
			referrerID = referrer.user.ID
		}
	}

	id := l.nextUser
	l.nextUser++
	acc := &account{
		user: session.User{
			ID:           id,
			Email:        email,
			MpesaNumber:  number,
			DateJoined:   l.clock.Now().UTC().Format(time.RFC3339),
			ReferralCode: strings.ToUpper(uuid.New().String()[:8]),
		},
		password:   payload.Password,
		referrerID: referrerID,
	}
	acc.wallet.BonusBalance = signupBonus
	l.accounts[id] = acc
	l.byEmail[email] = id
	bonus := l.appendLocked(id, txBonusCredit, signupBonus, payment.StatusSuccess, providerInternal)
	bonus.Meta = map[string]interface{}{"reason": "signup_bonus"}

	return acc.user, nil
}

// Authenticate checks credentials
func (l *Ledger) Authenticate(email, password string) (session.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok || l.accounts[id].password != password {
		return session.User{}, false
	}
	return l.accounts[id].user, true
}

// User returns the profile of an account
func (l *Ledger) User(id int64) (session.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[id]
	if !ok {
		return session.User{}, false
	}
	return acc.user, true
}

// Wallet returns the wallet of an account
func (l *Ledger) Wallet(id int64) (wallet.Wallet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[id]
	if !ok {
		return wallet.Wallet{}, false
	}
	return acc.wallet, true
}

// Credit adds cash to an account, marking it as having made a real deposit
func (l *Ledger) Credit(id int64, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[id]; ok {
		l.applyDepositLocked(acc, amount)
	}
}

// Transactions lists an account's rows, newest first
func (l *Ledger) Transactions(id int64) []wallet.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := lo.FilterMap(l.entries, func(e *entry, _ int) (wallet.Transaction, bool) {
		return e.Transaction, e.userID == id
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}

// Deposit records a pending STK push
func (l *Ledger) Deposit(id int64, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperrors.New(apperrors.ErrRejected, "Amount must be greater than zero.")
	}
	if amount.LessThan(payment.MinDeposit) {
		return 0, apperrors.New(apperrors.ErrRejected, "Minimum deposit is KES 50.")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[id]; !ok {
		return 0, apperrors.New(apperrors.ErrNotFound, "User not found.")
	}
	e := l.appendLocked(id, string(payment.KindDeposit), amount, payment.StatusPending, providerMpesa)
	e.outcome = l.script(payment.KindDeposit, amount)
	return e.ID, nil
}

// Withdraw records a pending cash-out and holds the funds
func (l *Ledger) Withdraw(id int64, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, apperrors.New(apperrors.ErrRejected, "Amount must be greater than zero.")
	}
	if amount.LessThan(payment.MinWithdrawal) {
		return 0, apperrors.New(apperrors.ErrRejected, "Minimum withdrawal is KES 100.")
	}
	if !amount.Mod(payment.WithdrawalStep).IsZero() {
		return 0, apperrors.New(apperrors.ErrRejected, "Withdrawal amount must be in increments of KES 50 (100, 150, 200, ...).")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[id]
	if !ok {
		return 0, apperrors.New(apperrors.ErrNotFound, "User not found.")
	}
	if !acc.wallet.HasMadeRealDeposit {
		return 0, apperrors.New(apperrors.ErrRejected, "You must make a real deposit before you can withdraw.")
	}
	if acc.plays < minPlaysBeforeCash {
		return 0, apperrors.New(apperrors.ErrRejected, "After depositing, you must play at least 2 times before you can withdraw.")
	}
	if acc.wallet.Balance.LessThan(amount) {
		return 0, apperrors.New(apperrors.ErrRejected, "Insufficient wallet balance.")
	}

	acc.wallet.Balance = acc.wallet.Balance.Sub(amount)
	e := l.appendLocked(id, string(payment.KindWithdrawal), amount, payment.StatusPending, providerMpesa)
	e.outcome = l.script(payment.KindWithdrawal, amount)
	return e.ID, nil
}

// Poll answers a status request. Each poll of a pending row counts towards
// its settlement.
func (l *Ledger) Poll(userID, txID int64) (payment.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := lo.Find(l.entries, func(e *entry) bool {
		return e.ID == txID && e.userID == userID && e.Provider == providerMpesa
	})
	if !ok {
		return payment.Transaction{}, apperrors.New(apperrors.ErrNotFound, "Transaction not found.")
	}

	if payment.Status(e.Status) == payment.StatusPending {
		e.polls++
		if e.polls >= l.settleAt && e.outcome != OutcomePending {
			l.settleLocked(e)
		}
	}

	return payment.Transaction{
		ID:          e.ID,
		Kind:        payment.Kind(e.Type),
		Amount:      e.Amount,
		Status:      payment.Status(e.Status),
		FinalState:  e.finalState,
		ReferenceID: e.ReferenceID,
	}, nil
}

// Settle forces a pending row to the given outcome, as a provider webhook
// would
func (l *Ledger) Settle(txID int64, outcome Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := lo.Find(l.entries, func(e *entry) bool { return e.ID == txID })
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, "Transaction not found.")
	}
	if payment.Status(e.Status) != payment.StatusPending {
		return nil
	}
	e.outcome = outcome
	l.settleLocked(e)
	return nil
}

func (l *Ledger) settleLocked(e *entry) {
	acc := l.accounts[e.userID]
	switch e.outcome {
	case OutcomeSuccess:
		e.Status = string(payment.StatusSuccess)
		if payment.Kind(e.Type) == payment.KindDeposit {
			l.applyDepositLocked(acc, e.Amount)
		}
	case OutcomeFailed, OutcomeCancelled:
		e.Status = string(payment.StatusFailed)
		e.finalState = string(e.outcome)
		if payment.Kind(e.Type) == payment.KindWithdrawal {
			acc.wallet.Balance = acc.wallet.Balance.Add(e.Amount)
		}
	}
}

// applyDepositLocked credits cash. The first real deposit forfeits the
// signup bonus; the first few reward the referrer.
func (l *Ledger) applyDepositLocked(acc *account, amount decimal.Decimal) {
	acc.wallet.Balance = acc.wallet.Balance.Add(amount)
	if !acc.wallet.HasMadeRealDeposit {
		acc.wallet.BonusBalance = decimal.Zero
		acc.wallet.HasMadeRealDeposit = true
	}
	acc.realDeposits++
	acc.plays = 0

	referrer, ok := l.accounts[acc.referrerID]
	if !ok || acc.realDeposits > maxRewardedDeposit {
		return
	}
	reward := amount.Mul(referralRate).Round(2)
	if reward.IsPositive() {
		referrer.wallet.Balance = referrer.wallet.Balance.Add(reward)
		l.appendLocked(referrer.user.ID, txReferralBonus, reward, payment.StatusSuccess, providerInternal)
	}
}

// stake takes total from the wallet (bonus first while the player has
// never deposited) and records the play
func (l *Ledger) stake(id int64, total decimal.Decimal, game string) (wallet.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[id]
	if !ok {
		return wallet.Wallet{}, apperrors.New(apperrors.ErrNotFound, "User not found.")
	}
	w := &acc.wallet
	if w.HasMadeRealDeposit {
		if w.Balance.LessThan(total) {
			return wallet.Wallet{}, apperrors.New(apperrors.ErrRejected, "Insufficient balance.")
		}
		w.Balance = w.Balance.Sub(total)
	} else {
		if w.Balance.Add(w.BonusBalance).LessThan(total) {
			return wallet.Wallet{}, apperrors.New(apperrors.ErrRejected, "Insufficient balance.")
		}
		fromBonus := decimal.Min(w.BonusBalance, total)
		w.BonusBalance = w.BonusBalance.Sub(fromBonus)
		w.Balance = w.Balance.Sub(total.Sub(fromBonus))
	}
	acc.plays++
	e := l.appendLocked(id, txGameStake, total, payment.StatusSuccess, providerInternal)
	e.Meta = map[string]interface{}{"game": game}
	return *w, nil
}

// pay credits a win. toBonus keeps welcome-bonus winnings in bonus_balance.
func (l *Ledger) pay(id int64, amount decimal.Decimal, game string, toBonus bool) wallet.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := &l.accounts[id].wallet
	if amount.IsPositive() {
		if toBonus && !w.HasMadeRealDeposit && w.BonusBalance.IsPositive() {
			w.BonusBalance = w.BonusBalance.Add(amount)
		} else {
			w.Balance = w.Balance.Add(amount)
		}
		e := l.appendLocked(id, txGameWin, amount, payment.StatusSuccess, providerInternal)
		e.Meta = map[string]interface{}{"game": game}
	}
	return *w
}

func (l *Ledger) appendLocked(userID int64, kind string, amount decimal.Decimal, status payment.Status, provider string) *entry {
	e := &entry{
		Transaction: wallet.Transaction{
			ID:        l.nextTx,
			Type:      kind,
			Amount:    amount,
			Status:    string(status),
			Provider:  provider,
			CreatedAt: l.clock.Now().UTC(),
		},
		userID: userID,
	}
	if provider == providerMpesa {
		e.ReferenceID = uuid.New().String()
	}
	l.nextTx++
	l.entries = append(l.entries, e)
	return e
}
