package privacy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
)

// Spending purposes tracked by the ledger.
const (
	PurposeSelection   = "selection"
	PurposeMeasurement = "measurement"
)

// RhoLedger tracks zCDP budget expenditure across a run. The budget is
// consumed monotonically; spending past the total, beyond a floating
// tolerance, is rejected rather than clamped.
type RhoLedger struct {
	mu           sync.Mutex
	total        float64
	spent        float64
	transactions []RhoTransaction
	logger       *logrus.Logger
}

// RhoTransaction records one budget expenditure.
type RhoTransaction struct {
	Round     int       `json:"round"`
	Purpose   string    `json:"purpose"`
	Rho       float64   `json:"rho"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerStatus summarizes a ledger's state.
type LedgerStatus struct {
	Total            float64 `json:"total"`
	Spent            float64 `json:"spent"`
	Remaining        float64 `json:"remaining"`
	TransactionCount int     `json:"transaction_count"`
}

// NewRhoLedger creates a ledger over a total zCDP budget.
func NewRhoLedger(total float64, logger *logrus.Logger) (*RhoLedger, error) {
	if total <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidEpsilon,
			fmt.Sprintf("total rho budget must be positive, got %g", total))
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &RhoLedger{
		total:  total,
		logger: logger,
	}, nil
}

// Spend records a ρ expenditure for one round and purpose.
func (l *RhoLedger) Spend(round int, purpose string, rho float64) error {
	if rho < 0 {
		return errors.NewPrivacyError(errors.CodeBudgetOverdraft,
			fmt.Sprintf("cannot spend negative rho %g", rho))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.spent+rho > l.total+constants.BudgetTolerance {
		return errors.NewPrivacyError(errors.CodeBudgetExhausted,
			fmt.Sprintf("insufficient budget: need rho=%g, have rho=%g", rho, l.total-l.spent))
	}

	l.spent += rho
	l.transactions = append(l.transactions, RhoTransaction{
		Round:     round,
		Purpose:   purpose,
		Rho:       rho,
		Timestamp: time.Now(),
	})

	l.logger.WithFields(logrus.Fields{
		"round":     round,
		"purpose":   purpose,
		"rho":       rho,
		"remaining": l.total - l.spent,
	}).Debug("Spent privacy budget")

	return nil
}

// Spent returns the total ρ spent so far.
func (l *RhoLedger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent
}

// Remaining returns the unspent ρ.
func (l *RhoLedger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total - l.spent
}

// Transactions returns a copy of the expenditure log.
func (l *RhoLedger) Transactions() []RhoTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RhoTransaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// Status returns a snapshot of the ledger.
func (l *RhoLedger) Status() *LedgerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &LedgerStatus{
		Total:            l.total,
		Spent:            l.spent,
		Remaining:        l.total - l.spent,
		TransactionCount: len(l.transactions),
	}
}
