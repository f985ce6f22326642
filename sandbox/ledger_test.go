package sandbox

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/payment"
	"github.com/vanillake254/BAHATI-YANGU/session"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T, settleAfter int) (*Ledger, int64) {
	t.Helper()
	l := NewLedger(clockwork.NewFakeClock(), DefaultScript(), settleAfter)
	user, err := l.Register(session.RegisterPayload{
		Email:       "Player@Example.com",
		MpesaNumber: "+254 712 345 678",
		Password:    "long-enough",
	})
	require.NoError(t, err)
	return l, user.ID
}

func TestRegister(t *testing.T) {
	l, id := newTestLedger(t, 1)

	user, ok := l.User(id)
	require.True(t, ok)
	assert.Equal(t, "player@example.com", user.Email)
	assert.Equal(t, "254712345678", user.MpesaNumber)
	assert.NotEmpty(t, user.ReferralCode)

	w, _ := l.Wallet(id)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.BonusBalance.Equal(dec("100")))
	assert.False(t, w.HasMadeRealDeposit)

	rows := l.Transactions(id)
	require.Len(t, rows, 1)
	assert.Equal(t, txBonusCredit, rows[0].Type)
}

func TestRegisterRejects(t *testing.T) {
	l, _ := newTestLedger(t, 1)

	tests := []struct {
		name    string
		payload session.RegisterPayload
		field   string
	}{
		{"duplicate email", session.RegisterPayload{Email: "player@example.com", MpesaNumber: "0712345678", Password: "long-enough"}, "email"},
		{"bad number", session.RegisterPayload{Email: "b@example.com", MpesaNumber: "12345", Password: "long-enough"}, "mpesa_number"},
		{"short password", session.RegisterPayload{Email: "c@example.com", MpesaNumber: "0712345678", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Register(tt.payload)
			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	l, id := newTestLedger(t, 1)

	user, ok := l.Authenticate(" PLAYER@example.com ", "long-enough")
	require.True(t, ok)
	assert.Equal(t, id, user.ID)

	_, ok = l.Authenticate("player@example.com", "wrong")
	assert.False(t, ok)
}

func TestDepositSettlesAfterPolls(t *testing.T) {
	l, id := newTestLedger(t, 3)

	txID, err := l.Deposit(id, dec("200"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		tx, err := l.Poll(id, txID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, tx.Status)
	}

	tx, err := l.Poll(id, txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, tx.Status)
	assert.Equal(t, payment.KindDeposit, tx.Kind)
	assert.NotEmpty(t, tx.ReferenceID)

	w, _ := l.Wallet(id)
	assert.True(t, w.Balance.Equal(dec("200")))
	assert.True(t, w.BonusBalance.IsZero(), "first real deposit forfeits the signup bonus")
	assert.True(t, w.HasMadeRealDeposit)

	// settled rows stay settled
	tx, err = l.Poll(id, txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, tx.Status)
	w, _ = l.Wallet(id)
	assert.True(t, w.Balance.Equal(dec("200")))
}

func TestDepositScriptedOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		amount     decimal.Decimal
		status     payment.Status
		finalState string
	}{
		{"failed", FailAmount, payment.StatusFailed, "FAILED"},
		{"cancelled", CancelAmount, payment.StatusFailed, "CANCELED"},
		{"never settles", PendingAmount, payment.StatusPending, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, id := newTestLedger(t, 1)
			txID, err := l.Deposit(id, tt.amount)
			require.NoError(t, err)

			var tx payment.Transaction
			for i := 0; i < 5; i++ {
				tx, err = l.Poll(id, txID)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.status, tx.Status)
			assert.Equal(t, tt.finalState, tx.FinalState)

			w, _ := l.Wallet(id)
			assert.False(t, w.HasMadeRealDeposit)
		})
	}
}

func TestDepositValidation(t *testing.T) {
	l, id := newTestLedger(t, 1)

	_, err := l.Deposit(id, dec("49"))
	assert.Equal(t, "Minimum deposit is KES 50.", apperrors.UserMessage(err, ""))
	assert.True(t, apperrors.IsRejected(err))

	_, err = l.Deposit(id, decimal.Zero)
	assert.True(t, apperrors.IsRejected(err))
}

func TestPollOtherUsersTransaction(t *testing.T) {
	l, id := newTestLedger(t, 1)
	other, err := l.Register(session.RegisterPayload{Email: "other@example.com", MpesaNumber: "0798765432", Password: "long-enough"})
	require.NoError(t, err)

	txID, err := l.Deposit(id, dec("100"))
	require.NoError(t, err)

	_, err = l.Poll(other.ID, txID)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.GetCode(err))
	assert.Equal(t, "Transaction not found.", apperrors.UserMessage(err, ""))

	// game rows are not payment transactions
	_, err = l.Poll(id, l.Transactions(id)[1].ID)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.GetCode(err))
}

func TestWithdrawRules(t *testing.T) {
	l, id := newTestLedger(t, 1)
	games := NewGames(l, nil, 1)

	_, err := l.Withdraw(id, dec("100"))
	assert.Equal(t, "You must make a real deposit before you can withdraw.", apperrors.UserMessage(err, ""))

	l.Credit(id, dec("500"))
	_, err = l.Withdraw(id, dec("100"))
	assert.Equal(t, "After depositing, you must play at least 2 times before you can withdraw.", apperrors.UserMessage(err, ""))

	_, err = l.Withdraw(id, dec("120"))
	assert.Contains(t, apperrors.UserMessage(err, ""), "increments of KES 50")
	_, err = l.Withdraw(id, dec("50"))
	assert.Equal(t, "Minimum withdrawal is KES 100.", apperrors.UserMessage(err, ""))

	for i := 0; i < 2; i++ {
		_, err := games.PickBox(id, dec("20"), "left")
		require.NoError(t, err)
	}

	w, _ := l.Wallet(id)
	tooMuch := w.Balance.Div(dec("50")).Floor().Add(dec("1")).Mul(dec("50"))
	_, err = l.Withdraw(id, tooMuch)
	assert.Equal(t, "Insufficient wallet balance.", apperrors.UserMessage(err, ""))

	txID, err := l.Withdraw(id, dec("100"))
	require.NoError(t, err)
	held, _ := l.Wallet(id)
	assert.True(t, held.Balance.Equal(w.Balance.Sub(dec("100"))), "funds are held at submission")

	tx, err := l.Poll(id, txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, tx.Status)
	after, _ := l.Wallet(id)
	assert.True(t, after.Balance.Equal(held.Balance))
}

func TestWithdrawFailureReturnsFunds(t *testing.T) {
	l, id := newTestLedger(t, 1)
	games := NewGames(l, nil, 1)
	l.Credit(id, dec("1000"))
	for i := 0; i < 2; i++ {
		_, err := games.PickBox(id, dec("20"), "middle")
		require.NoError(t, err)
	}
	before, _ := l.Wallet(id)

	txID, err := l.Withdraw(id, CancelAmount)
	require.NoError(t, err)
	tx, err := l.Poll(id, txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, tx.Status)
	assert.Equal(t, "CANCELED", tx.FinalState)

	after, _ := l.Wallet(id)
	assert.True(t, after.Balance.Equal(before.Balance))
}

func TestReferralReward(t *testing.T) {
	l, referrerID := newTestLedger(t, 1)
	referrer, _ := l.User(referrerID)

	friend, err := l.Register(session.RegisterPayload{
		Email:        "friend@example.com",
		MpesaNumber:  "0711111111",
		Password:     "long-enough",
		ReferralCode: referrer.ReferralCode,
	})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		txID, err := l.Deposit(friend.ID, dec("100"))
		require.NoError(t, err)
		_, err = l.Poll(friend.ID, txID)
		require.NoError(t, err)
	}

	w, _ := l.Wallet(referrerID)
	assert.True(t, w.Balance.Equal(dec("30")), "10%% of the first three deposits, got %s", w.Balance)
}

func TestSettleForcesOutcome(t *testing.T) {
	l, id := newTestLedger(t, 100)
	txID, err := l.Deposit(id, dec("300"))
	require.NoError(t, err)

	require.NoError(t, l.Settle(txID, OutcomeSuccess))
	tx, err := l.Poll(id, txID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, tx.Status)

	assert.Error(t, l.Settle(9999, OutcomeFailed))
}
