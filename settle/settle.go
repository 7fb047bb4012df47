// Package settle computes fair shares and a near-minimal set of
// settling transactions from an expense ledger snapshot.
package settle

import (
	"math"

	"github.com/samber/lo"

	"github.com/festivo/gamehub/ledger"
)

// Epsilon is the noise floor for currency amounts. Transfers at or below
// this value are dropped, and a balance within it of zero counts as settled.
const Epsilon = 0.01

// Balance is one participant's position against the ledger.
type Balance struct {
	ParticipantID string  `json:"participantId"`
	Name          string  `json:"name"`
	FairShare     float64 `json:"fairShare"`
	Paid          float64 `json:"paid"`
	Balance       float64 `json:"balance"`
}

// Transaction is one settling payment from a debtor to a creditor.
type Transaction struct {
	FromID string  `json:"fromId"`
	ToID   string  `json:"toId"`
	Amount float64 `json:"amount"`
}

// Result is the full settlement for one ledger snapshot.
type Result struct {
	TotalExpenses float64       `json:"totalExpenses"`
	Balances      []Balance     `json:"balances"`
	Transactions  []Transaction `json:"transactions"`
}

// Compute derives every participant's balance and the greedy two-pointer
// settlement. It never errors: an empty ledger or a zero total weight
// yields all-zero balances.
func Compute(l ledger.Snapshot) Result {
	total := lo.SumBy(l.Expenses, func(e ledger.Expense) float64 { return e.Total })
	totalWeight := lo.SumBy(l.Participants, func(p ledger.Participant) float64 { return p.Weight })

	paidBy := make(map[string]float64, len(l.Participants))
	for _, pay := range l.Payments {
		paidBy[pay.ParticipantID] += pay.Amount
	}

	balances := make([]Balance, 0, len(l.Participants))
	for _, p := range l.Participants {
		share := 0.0
		if totalWeight > 0 {
			share = total * p.Weight / totalWeight
		}
		paid := paidBy[p.ID]
		balances = append(balances, Balance{
			ParticipantID: p.ID,
			Name:          p.Name,
			FairShare:     share,
			Paid:          paid,
			Balance:       paid - share,
		})
	}

	return Result{
		TotalExpenses: total,
		Balances:      balances,
		Transactions:  settleTransactions(balances),
	}
}

// settleTransactions runs the classic cash-flow minimization heuristic:
// debtors and creditors keep their ledger encounter order, then a two
// pointer greedy match transfers min(debt, credit) at each step. The
// result has at most len(debtors)+len(creditors)-1 transactions. It is not
// guaranteed globally minimal for pathological weight distributions.
func settleTransactions(balances []Balance) []Transaction {
	type open struct {
		id        string
		remaining float64
	}

	var debtors, creditors []open
	for _, b := range balances {
		switch {
		case b.Balance < -Epsilon:
			debtors = append(debtors, open{id: b.ParticipantID, remaining: -b.Balance})
		case b.Balance > Epsilon:
			creditors = append(creditors, open{id: b.ParticipantID, remaining: b.Balance})
		}
	}

	var txs []Transaction
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := math.Min(debtors[i].remaining, creditors[j].remaining)
		if amount > Epsilon {
			txs = append(txs, Transaction{
				FromID: debtors[i].id,
				ToID:   creditors[j].id,
				Amount: round2(amount),
			})
		}

		debtors[i].remaining -= amount
		creditors[j].remaining -= amount
		if debtors[i].remaining <= Epsilon {
			i++
		}
		if creditors[j].remaining <= Epsilon {
			j++
		}
	}
	return txs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
