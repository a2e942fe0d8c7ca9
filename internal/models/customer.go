// internal/models/customer.go
package models

// IdentityStatusActive is the only KYC status that allows subscription.
const IdentityStatusActive = "ACTIVE"

// Identity is the KYC view of a customer held by the core banking system.
type Identity struct {
	CustomerID  string `json:"customerId"`
	FullName    string `json:"fullName"`
	Status      string `json:"status"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

// Transaction is one aggregated transaction-history record served to the scoring engine.
type Transaction struct {
	ID                                int64    `json:"id"`
	AccountNumber                     string   `json:"accountNumber"`
	AlternativeChannelTrnsCrAmount    float64  `json:"alternativechanneltrnscrAmount"`
	AlternativeChannelTrnsCrNumber    int      `json:"alternativechanneltrnscrNumber"`
	AlternativeChannelTrnsDebitAmount float64  `json:"alternativechanneltrnsdebitAmount"`
	AlternativeChannelTrnsDebitNumber int      `json:"alternativechanneltrnsdebitNumber"`
	ATMTransactionsNumber             int      `json:"atmTransactionsNumber"`
	ATMTransactionsAmount             float64  `json:"atmtransactionsAmount"`
	BouncedChequesDebitNumber         int      `json:"bouncedChequesDebitNumber"`
	BouncedChequesCreditNumber        int      `json:"bouncedchequescreditNumber"`
	ChequeDebitTransactionsAmount     float64  `json:"chequeDebitTransactionsAmount"`
	ChequeDebitTransactionsNumber     int      `json:"chequeDebitTransactionsNumber"`
	CreditTransactionsAmount          float64  `json:"credittransactionsAmount"`
	DebitCardPosTransactionsAmount    float64  `json:"debitcardpostransactionsAmount"`
	DebitCardPosTransactionsNumber    int      `json:"debitcardpostransactionsNumber"`
	InterestAmount                    float64  `json:"intrestAmount"`
	LastTransactionDate               int64    `json:"lastTransactionDate"`
	LastTransactionType               *string  `json:"lastTransactionType"`
	LastTransactionValue              int      `json:"lastTransactionValue"`
	MobileMoneyCreditTransactionAmt   float64  `json:"mobilemoneycredittransactionAmount"`
	MobileMoneyCreditTransactionNum   int      `json:"mobilemoneycredittransactionNumber"`
	MobileMoneyDebitTransactionAmt    float64  `json:"mobilemoneydebittransactionAmount"`
	MobileMoneyDebitTransactionNum    int      `json:"mobilemoneydebittransactionNumber"`
	MonthlyBalance                    float64  `json:"monthlyBalance"`
	MonthlyDebitTransactionsAmount    float64  `json:"monthlydebittransactionsAmount"`
	OverdraftLimit                    float64  `json:"overdraftLimit"`
	OverTheCounterWithdrawalsAmount   float64  `json:"overthecounterwithdrawalsAmount"`
	OverTheCounterWithdrawalsNumber   int      `json:"overthecounterwithdrawalsNumber"`
	TransactionValue                  float64  `json:"transactionValue"`
	MaxATMTransactions                *float64 `json:"maxAtmTransactions,omitempty"`
	MinATMTransactions                *float64 `json:"minAtmTransactions,omitempty"`
	CreatedAt                         int64    `json:"createdAt"`
	UpdatedAt                         int64    `json:"updatedAt"`
}
