package taskname

const (
	// Payout tasks
	PayoutProcess = "payout:process"

	// Earning tasks
	EarningRecord = "earning:record"
	EarningClear  = "earning:clear"
)
