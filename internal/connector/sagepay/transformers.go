package sagepay

import (
	"encoding/json"
	"strings"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const defaultVendorName = "sandbox"

type authType struct {
	apiKey     string
	vendorName string
}

func newAuthType(auth types.ConnectorAuthType) (authType, error) {
	if auth.Kind != types.HeaderKey || auth.APIKey == "" {
		return authType{}, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
	}
	vendor := auth.Key1
	if vendor == "" {
		vendor = defaultVendorName
	}
	return authType{apiKey: auth.APIKey, vendorName: vendor}, nil
}

type sessionRequest struct {
	VendorName string `json:"vendorName"`
}

type sessionResponse struct {
	MerchantSessionKey string `json:"merchantSessionKey"`
	Expiry             string `json:"expiry"`
}

type cardDetails struct {
	CardholderName string `json:"cardholderName"`
	CardNumber     string `json:"cardNumber"`
	ExpiryDate     string `json:"expiryDate"`
	SecurityCode   string `json:"securityCode,omitempty"`
}

type cardTokenizeRequest struct {
	CardDetails cardDetails `json:"cardDetails"`
}

type cardTokenizeResponse struct {
	CardIdentifier string `json:"cardIdentifier"`
	Expiry         string `json:"expiry"`
	CardType       string `json:"cardType"`
}

// expiryDate renders month and year as MMYY.
func expiryDate(month, year string) string {
	if len(month) == 1 {
		month = "0" + month
	}
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return month + year
}

func newCardTokenizeRequest(data types.PaymentsCardTokenizeRouterData) (cardTokenizeRequest, error) {
	card := data.Request.Card
	if card.CardNumber == "" {
		return cardTokenizeRequest{}, apierrors.MissingField("card_number")
	}
	return cardTokenizeRequest{
		CardDetails: cardDetails{
			CardholderName: card.CardHolderName,
			CardNumber:     card.CardNumber,
			ExpiryDate:     expiryDate(card.CardExpMonth, card.CardExpYear),
			SecurityCode:   card.CardCVC,
		},
	}, nil
}

type transactionType string

const (
	transactionPayment  transactionType = "Payment"
	transactionDeferred transactionType = "Deferred"
	transactionRefund   transactionType = "Refund"
)

type card struct {
	MerchantSessionKey string `json:"merchantSessionKey"`
	CardIdentifier     string `json:"cardIdentifier"`
	Reusable           bool   `json:"reusable"`
	Save               bool   `json:"save"`
}

type paymentMethod struct {
	Card card `json:"card"`
}

type billingAddress struct {
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
	State      string `json:"state,omitempty"`
}

type paymentsRequest struct {
	TransactionType   transactionType `json:"transactionType"`
	PaymentMethod     paymentMethod   `json:"paymentMethod"`
	VendorTxCode      string          `json:"vendorTxCode"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description"`
	CustomerFirstName string          `json:"customerFirstName"`
	CustomerLastName  string          `json:"customerLastName"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	BillingAddress    billingAddress  `json:"billingAddress"`
	EntryMethod       string          `json:"entryMethod"`
	Apply3DSecure     string          `json:"apply3DSecure"`
}

func newPaymentsRequest(data types.PaymentsAuthorizeRouterData) (paymentsRequest, error) {
	if data.SessionToken == "" {
		return paymentsRequest{}, apierrors.MissingField("merchantSessionKey")
	}
	if data.CardToken == "" {
		return paymentsRequest{}, apierrors.MissingField("cardIdentifier")
	}

	txType := transactionPayment
	if data.Request.CaptureMethod == models.CaptureMethodManual {
		txType = transactionDeferred
	}

	first, last := splitName(cardHolder(data.Request.PaymentMethodData))
	description := data.Request.Description
	if description == "" {
		description = data.PaymentID
	}

	req := paymentsRequest{
		TransactionType: txType,
		PaymentMethod: paymentMethod{Card: card{
			MerchantSessionKey: data.SessionToken,
			CardIdentifier:     data.CardToken,
		}},
		VendorTxCode:      data.AttemptID,
		Amount:            data.Request.Amount,
		Currency:          data.Request.Currency,
		Description:       description,
		CustomerFirstName: first,
		CustomerLastName:  last,
		CustomerEmail:     data.Request.Email,
		EntryMethod:       "Ecommerce",
		Apply3DSecure:     apply3DSecure(data.AuthenticationType),
	}
	if billing := data.Address.Billing; billing != nil {
		req.BillingAddress = billingAddress{
			Address1:   billing.Line1,
			Address2:   billing.Line2,
			City:       billing.City,
			PostalCode: billing.Zip,
			Country:    billing.Country,
			State:      billing.State,
		}
	}
	return req, nil
}

func cardHolder(pm models.PaymentMethodData) string {
	if pm.Card == nil {
		return ""
	}
	return pm.Card.CardHolderName
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if i := strings.LastIndex(full, " "); i > 0 {
		return full[:i], full[i+1:]
	}
	return full, full
}

func apply3DSecure(auth models.AuthenticationType) string {
	if auth == models.AuthenticationTypeThreeDs {
		return "Force"
	}
	return "UseMSPSetting"
}

type refundRequest struct {
	TransactionType        transactionType `json:"transactionType"`
	ReferenceTransactionID string          `json:"referenceTransactionId"`
	VendorTxCode           string          `json:"vendorTxCode"`
	Amount                 int64           `json:"amount"`
	Description            string          `json:"description"`
}

func newRefundRequest(data types.RefundExecuteRouterData) refundRequest {
	description := data.Request.Reason
	if description == "" {
		description = "Refund " + data.Request.RefundID
	}
	return refundRequest{
		TransactionType:        transactionRefund,
		ReferenceTransactionID: data.Request.ConnectorTransactionID,
		VendorTxCode:           data.Request.RefundID,
		Amount:                 data.Request.RefundAmount,
		Description:            description,
	}
}

type instructionRequest struct {
	InstructionType string `json:"instructionType"`
	Amount          int64  `json:"amount,omitempty"`
}

type instructionResponse struct {
	InstructionType string `json:"instructionType"`
	Date            string `json:"date"`
}

// transactionStatus is the outcome field of a transaction resource.
type transactionStatus string

const (
	statusOk        transactionStatus = "Ok"
	statusNotAuthed transactionStatus = "NotAuthed"
	statusRejected  transactionStatus = "Rejected"
	status3DAuth    transactionStatus = "3DAuth"
	statusMalformed transactionStatus = "Malformed"
	statusInvalid   transactionStatus = "Invalid"
	statusError     transactionStatus = "Error"
)

type amount struct {
	TotalAmount     int64 `json:"totalAmount"`
	SaleAmount      int64 `json:"saleAmount"`
	SurchargeAmount int64 `json:"surchargeAmount"`
}

type transactionResponse struct {
	TransactionID   string            `json:"transactionId"`
	TransactionType transactionType   `json:"transactionType"`
	Status          transactionStatus `json:"status"`
	StatusCode      string            `json:"statusCode"`
	StatusDetail    string            `json:"statusDetail"`
	Amount          *amount           `json:"amount,omitempty"`
	Currency        string            `json:"currency"`
	AcsURL          string            `json:"acsUrl,omitempty"`
	CReq            string            `json:"cReq,omitempty"`
}

func (r transactionResponse) attemptStatus() models.AttemptStatus {
	switch r.Status {
	case statusOk:
		if r.TransactionType == transactionDeferred {
			return models.AttemptStatusAuthorized
		}
		return models.AttemptStatusCharged
	case status3DAuth:
		return models.AttemptStatusAuthenticationPending
	case statusNotAuthed, statusRejected:
		return models.AttemptStatusAuthorizationFailed
	case statusMalformed, statusInvalid, statusError:
		return models.AttemptStatusFailure
	default:
		return models.AttemptStatusPending
	}
}

func (r transactionResponse) refundStatus() models.RefundStatus {
	switch r.Status {
	case statusOk:
		return models.RefundStatusSuccess
	case statusNotAuthed, statusRejected, statusMalformed, statusInvalid, statusError:
		return models.RefundStatusFailure
	default:
		return models.RefundStatusPending
	}
}

func (r transactionResponse) paymentsResponse() types.PaymentsResponseData {
	out := types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(r.TransactionID)}
	if r.Status == status3DAuth && r.AcsURL != "" {
		out.Redirect = true
		out.RedirectionData = &types.RedirectForm{
			Endpoint: r.AcsURL,
			Method:   types.MethodPost,
			Form:     map[string]string{"creq": r.CReq, "threeDSSessionData": r.TransactionID},
		}
	}
	return out
}

type errorDetail struct {
	Code        json.Number `json:"code"`
	Description string      `json:"description"`
	Property    string      `json:"property"`
}

type errorResponse struct {
	Code        json.Number   `json:"code"`
	Description string        `json:"description"`
	StatusCode  json.Number   `json:"statusCode"`
	Errors      []errorDetail `json:"errors"`
}

func (e errorResponse) toErrorResponse() *types.ErrorResponse {
	out := &types.ErrorResponse{Code: e.Code.String(), Message: e.Description}
	if len(e.Errors) > 0 {
		first := e.Errors[0]
		if out.Code == "" {
			out.Code = first.Code.String()
		}
		if out.Message == "" {
			out.Message = first.Description
		}
		out.Reason = first.Property
	}
	if out.Code == "" {
		out.Code = e.StatusCode.String()
	}
	return out
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, apierrors.NewConnectorError(apierrors.RequestEncodingFailed, err)
	}
	return body, nil
}
