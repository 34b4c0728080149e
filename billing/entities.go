// Package billing normalizes the billing backend's loosely-shaped responses
// into canonical typed records and exposes the query/command operations the
// console uses. Field names and numeric encodings coming from the upstream
// are not stable; everything crosses the rawrecord/coerce boundary before it
// reaches a caller.
package billing

// IssuedCharge is a charge that has already been generated upstream.
// Optional dates stay nil when the upstream omitted them; they are never
// defaulted to a value that could pass for real data.
type IssuedCharge struct {
	ID          int64   `json:"id"`
	ClientName  string  `json:"clientName"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	DueDate     *string `json:"dueDate,omitempty"`
	CreatedAt   *string `json:"createdAt,omitempty"`
	UpdatedAt   *string `json:"updatedAt,omitempty"`
}

// PendingCharge aggregates the procedures of one patient that have not been
// billed yet.
type PendingCharge struct {
	PatientID      int64   `json:"patientId"`
	PatientName    string  `json:"patientName"`
	ProcedureCount int64   `json:"procedureCount"`
	Amount         float64 `json:"amount"`
	ProcedureIDs   string  `json:"procedureIds"`
}

// Batch is the result of normalizing one list response. AmountTotal is
// recomputed client-side from the accepted items so the displayed total is
// always consistent with the displayed list; Dropped counts the records
// whose identifying field could not be resolved.
type Batch[T any] struct {
	Items       []T     `json:"items"`
	Count       int     `json:"count"`
	AmountTotal float64 `json:"amountTotal"`
	Dropped     int     `json:"dropped,omitempty"`
}
