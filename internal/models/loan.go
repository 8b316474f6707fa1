package models

import "time"

// DefaultLoanPeriod is the fixed period between issue and due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

type LoanStatus string

const (
	LoanIssued   LoanStatus = "issued"
	LoanReturned LoanStatus = "returned"
)

type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "good"
	ConditionFair    ReturnCondition = "fair"
	ConditionDamaged ReturnCondition = "damaged"
)

func (c ReturnCondition) Valid() bool {
	switch c {
	case ConditionGood, ConditionFair, ConditionDamaged:
		return true
	}
	return false
}

type Loan struct {
	ID                string           `json:"id" db:"id"`
	BookID            string           `json:"book_id" db:"book_id"`
	BorrowerID        string           `json:"borrower_id" db:"borrower_id"`
	IssuedBy          string           `json:"issued_by" db:"issued_by"`
	IssueDate         time.Time        `json:"issue_date" db:"issue_date"`
	DueDate           time.Time        `json:"due_date" db:"due_date"`
	ReturnDate        *time.Time       `json:"return_date" db:"return_date"`
	Status            LoanStatus       `json:"status" db:"status"`
	Notes             *string          `json:"notes,omitempty" db:"notes"`
	ReturnNotes       *string          `json:"return_notes,omitempty" db:"return_notes"`
	ConditionAtReturn *ReturnCondition `json:"condition_at_return,omitempty" db:"condition_at_return"`

	// Overdue is derived at read time and never stored.
	Overdue bool `json:"overdue" db:"-"`
}

// ClassifyLoan reports whether the loan is overdue at now.
func ClassifyLoan(l Loan, now time.Time) bool {
	return l.Status == LoanIssued && now.After(l.DueDate)
}

// WithOverdue returns a copy of l with Overdue computed at now.
func (l Loan) WithOverdue(now time.Time) Loan {
	l.Overdue = ClassifyLoan(l, now)
	return l
}
