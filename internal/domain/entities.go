// Package domain holds the back-office entities shared by the repository,
// service and HTTP layers. Every entity is scoped by CompanyID; records from
// different companies are never visible to each other.
package domain

import "time"

// AccountingPurpose classifies postings for reporting. System purposes are
// platform-managed and read-only for users.
type AccountingPurpose struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	PurposeCode string     `json:"purpose_code"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsSystem    bool       `json:"is_system"`
	IsActive    bool       `json:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PaymentTerm defines when and with what discount an invoice is due.
type PaymentTerm struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	DaysNet         int        `json:"days_net"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountDays    int        `json:"discount_days"`
	IsActive        bool       `json:"is_active"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EmployeeBranchAssignment links an employee to a branch. At most one
// assignment per employee may be primary at a time.
type EmployeeBranchAssignment struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	EmployeeID string     `json:"employee_id"`
	BranchID   string     `json:"branch_id"`
	IsPrimary  bool       `json:"is_primary"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SupplierPrice is one supplier's price for a product over a validity window.
type SupplierPrice struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"company_id"`
	SupplierID  string     `json:"supplier_id"`
	ProductCode string     `json:"product_code"`
	Price       float64    `json:"price"`
	Currency    string     `json:"currency"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PosImport statuses.
const (
	ImportStatusPending   = "pending"
	ImportStatusAnalyzed  = "analyzed"
	ImportStatusConfirmed = "confirmed"
	ImportStatusFailed    = "failed"
)

// PosImport tracks one uploaded POS data file through the
// upload -> analyze -> confirm workflow.
type PosImport struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	FileName       string    `json:"file_name"`
	Status         string    `json:"status"`
	RowCount       int       `json:"row_count"`
	DuplicateCount int       `json:"duplicate_count"`
	NewCount       int       `json:"new_count"`
	TotalAmount    float64   `json:"total_amount"`
	SkipDuplicates bool      `json:"skip_duplicates"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PosRow is one pre-parsed row of an uploaded POS file, submitted to the
// analyze step. File parsing itself happens upstream.
type PosRow struct {
	ReceiptNumber string    `json:"receipt_number"`
	SoldAt        time.Time `json:"sold_at"`
	Amount        float64   `json:"amount"`
}

// SystemLog is an append-only operational log entry.
type SystemLog struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog records who changed what. Written best-effort after mutations.
type AuditLog struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Action        string    `json:"action"`
	Resource      string    `json:"resource"`
	RecordID      string    `json:"record_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
