package client

import (
	"github.com/shopspring/decimal"
)

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the backend's public user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Portfolio is a named collection of holdings.
type Portfolio struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	UserID    int64  `json:"userId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Holding is one position in a portfolio. Amounts are exact decimals.
type Holding struct {
	ID          int64           `json:"id"`
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avgCost"`
	PortfolioID int64           `json:"portfolioId,omitempty"`
}

// HoldingInput is the body of a holding create or update. The backend reads
// amounts as decimal strings.
type HoldingInput struct {
	Symbol   string          `json:"symbol,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avgCost"`
}

// TopPick is one entry of the curated stock list.
type TopPick struct {
	ID             int64    `json:"id"`
	Symbol         string   `json:"symbol"`
	CompanyName    string   `json:"companyName,omitempty"`
	Sector         string   `json:"sector,omitempty"`
	Period         string   `json:"period,omitempty"`
	LastPrice      *float64 `json:"lastPrice,omitempty"`
	ExpectedTarget *float64 `json:"expectedTarget,omitempty"`
	ReturnPercent  *float64 `json:"returnPercent,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
	LastUpdated    string   `json:"lastUpdated,omitempty"`
}
