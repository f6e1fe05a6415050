package types

import (
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

// RouterData is the per-call envelope for one connector interaction of flow
// F. Req is the flow-specific request payload and Resp the success payload
// the connector's response is parsed into.
type RouterData[F Flow, Req any, Resp any] struct {
	MerchantID         string
	Connector          string
	PaymentID          string
	AttemptID          string
	Status             models.AttemptStatus
	PaymentMethod      models.PaymentMethodType
	AuthenticationType models.AuthenticationType
	ConnectorAuthType  ConnectorAuthType
	Description        string
	ReturnURL          string
	Address            PaymentAddress

	Request Req

	// Exactly one of Response and ErrorResponse is set once the call resolved.
	Response      *Resp
	ErrorResponse *ErrorResponse
	HTTPCode      int

	SessionToken string
	CardToken    string
}

// FlowName returns the name of the envelope's flow tag.
func (d RouterData[F, Req, Resp]) FlowName() string {
	return FlowName[F]()
}

// WithCarryOver returns a copy of d with the pre-task outputs folded in.
func (d RouterData[F, Req, Resp]) WithCarryOver(c CarryOver) RouterData[F, Req, Resp] {
	if c.SessionToken != "" {
		d.SessionToken = c.SessionToken
	}
	if c.CardToken != "" {
		d.CardToken = c.CardToken
	}
	return d
}

// ChangeFlow builds the envelope for a different flow out of src, keeping
// identity, authentication and carry-over fields and replacing the request.
// The response of src is not carried over.
func ChangeFlow[F2 Flow, Req2 any, Resp2 any, F1 Flow, Req1 any, Resp1 any](
	src RouterData[F1, Req1, Resp1],
	req Req2,
) RouterData[F2, Req2, Resp2] {
	return RouterData[F2, Req2, Resp2]{
		MerchantID:         src.MerchantID,
		Connector:          src.Connector,
		PaymentID:          src.PaymentID,
		AttemptID:          src.AttemptID,
		Status:             src.Status,
		PaymentMethod:      src.PaymentMethod,
		AuthenticationType: src.AuthenticationType,
		ConnectorAuthType:  src.ConnectorAuthType,
		Description:        src.Description,
		ReturnURL:          src.ReturnURL,
		Address:            src.Address,
		Request:            req,
		SessionToken:       src.SessionToken,
		CardToken:          src.CardToken,
	}
}

type (
	PaymentsAuthorizeRouterData    = RouterData[Authorize, PaymentsAuthorizeData, PaymentsResponseData]
	PaymentsCaptureRouterData      = RouterData[Capture, PaymentsCaptureData, PaymentsResponseData]
	PaymentsCancelRouterData       = RouterData[Void, PaymentsCancelData, PaymentsResponseData]
	PaymentsSyncRouterData         = RouterData[PSync, PaymentsSyncData, PaymentsResponseData]
	PaymentsSessionRouterData      = RouterData[Session, PaymentsSessionData, PaymentsResponseData]
	PaymentsPreAuthorizeRouterData = RouterData[PreAuthorize, PreAuthorizeData, PaymentsResponseData]
	PaymentsCardTokenizeRouterData = RouterData[CardTokenize, CardTokenizeData, PaymentsResponseData]
	RefundExecuteRouterData        = RouterData[Execute, RefundsData, RefundsResponseData]
	RefundSyncRouterData           = RouterData[RSync, RefundsData, RefundsResponseData]
)
