package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ValidISBN(t *testing.T) {
	cases := map[string]bool{
		"0306406152":    true,
		"080442957X":    true,
		"9780306406157": true,
		"9780306406158": false,
		"0306406153":    false,
		"12345":         false,
		"97803064061AB": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidISBN(NormalizeISBN(in)), in)
	}
}

func Test_Book_Validate(t *testing.T) {
	isbn := "978-0-306-40615-7"
	b := Book{Title: "  Dune ", Authors: []string{" Frank Herbert ", ""}, TotalCopies: 2, ISBN: &isbn}
	require.NoError(t, b.Validate())
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, []string{"Frank Herbert"}, b.Authors)
	assert.Equal(t, "9780306406157", *b.ISBN)

	bad := "978-0-306-40615-8"
	assert.Error(t, (&Book{Title: "x", TotalCopies: 1, ISBN: &bad}).Validate())
	assert.Error(t, (&Book{Title: "x", TotalCopies: 0}).Validate())
	assert.Error(t, (&Book{Title: " ", TotalCopies: 1}).Validate())

	empty := " - "
	eb := Book{Title: "x", TotalCopies: 1, ISBN: &empty}
	require.NoError(t, eb.Validate())
	assert.Nil(t, eb.ISBN)
}

func Test_Book_Consistent(t *testing.T) {
	assert.True(t, Book{TotalCopies: 3, AvailableCopies: 0}.Consistent())
	assert.True(t, Book{TotalCopies: 3, AvailableCopies: 3}.Consistent())
	assert.False(t, Book{TotalCopies: 3, AvailableCopies: 4}.Consistent())
	assert.False(t, Book{TotalCopies: 3, AvailableCopies: -1}.Consistent())
	assert.Equal(t, 2, Book{TotalCopies: 3, AvailableCopies: 1}.Issued())
}

func Test_Account_CanBorrow(t *testing.T) {
	a := Account{Role: RoleStudent, ApprovalStatus: ApprovalApproved, Active: true}
	assert.True(t, a.CanBorrow())

	a.Active = false
	assert.False(t, a.CanBorrow())

	for _, s := range []ApprovalStatus{ApprovalPending, ApprovalRejected} {
		assert.False(t, Account{Role: RoleStudent, ApprovalStatus: s, Active: true}.CanBorrow())
	}
	assert.True(t, Account{Role: RoleLibrarian, ApprovalStatus: ApprovalApproved, Active: true}.CanBorrow())
}

func Test_Account_Validate(t *testing.T) {
	a := Account{Username: " reader ", Email: " Reader@Example.org "}
	require.NoError(t, a.Validate())
	assert.Equal(t, RoleStudent, a.Role)
	assert.Equal(t, "reader@example.org", a.Email)

	assert.Error(t, (&Account{Username: "ab", Email: "a@b"}).Validate())
	assert.Error(t, (&Account{Username: "abc", Email: "nope"}).Validate())
	assert.Error(t, (&Account{Username: "abc", Email: "a@b", Role: "janitor"}).Validate())
}

func Test_ClassifyLoan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := Loan{Status: LoanIssued, DueDate: now.Add(-24 * time.Hour)}
	assert.True(t, ClassifyLoan(l, now))
	assert.True(t, l.WithOverdue(now).Overdue)

	l.DueDate = now
	assert.False(t, ClassifyLoan(l, now), "due exactly now is not overdue")

	returned := Loan{Status: LoanReturned, DueDate: now.Add(-24 * time.Hour)}
	assert.False(t, ClassifyLoan(returned, now))
}
