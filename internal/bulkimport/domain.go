package bulkimport

// Row is one spreadsheet row with cells kept as raw text. Normalization and
// validation happen during import so errors can name the offending row.
type Row struct {
	Line             int
	ProductID        string
	Quantity         string
	CostPerUnit      string
	ExpirationDate   string
	SupplierName     string
	SupplierContact  string
	SupplierEmail    string
	BatchNumber      string
	PurchaseOrderRef string
	ReceivedDate     string
	Notes            string
}

// RowError attributes one failed row to a field and reason.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportResult reports the outcome of one import run. Success is true when at
// least one row committed; partial success is still success, with Errors
// enumerating the failures.
type ImportResult struct {
	ImportID          string     `json:"importId"`
	TotalRows         int        `json:"totalRows"`
	SuccessCount      int        `json:"successCount"`
	Success           bool       `json:"success"`
	Errors            []RowError `json:"errors,omitempty"`
	CreatedBatches    []int64    `json:"createdBatches,omitempty"`
	UpdatedAggregates []int64    `json:"updatedAggregates,omitempty"`
}
