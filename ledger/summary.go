package ledger

// WindowCounts are the status counts over the borrowings initiated inside a
// Window, with the open loans split by the "now" the query was evaluated
// against. Status is evaluated at query time, not frozen at the window end.
type WindowCounts struct {
	Total    int64
	Active   int64
	Overdue  int64
	Returned int64
}
