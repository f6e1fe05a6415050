// Package payments is the operation pipeline of the switch. Every operation
// runs the same stages in order: validate the request, load the trackers,
// resolve customer, payment method and connector, call the connector and
// finally commit the outcome through the tracker updater.
package payments

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// PaymentData is the working set of one pipeline execution of flow F. It is
// assembled by the tracker loader, extended by the domain resolver and
// flushed to storage by the tracker updater. It is never persisted as is.
type PaymentData[F types.Flow] struct {
	Intent            models.PaymentIntent
	Attempt           models.PaymentAttempt
	Address           types.PaymentAddress
	Customer          *models.Customer
	ConnectorResponse *models.ConnectorResponse
	Refunds           []models.Refund

	PaymentMethodData *models.PaymentMethodData
	Connector         string
	ConnectorAuthType types.ConnectorAuthType

	SessionToken string
	CardToken    string

	CancellationReason *string
	AmountToCapture    *int64
	ForceSync          bool
	Redirection        *types.RedirectForm

	Scheme models.StorageScheme
}

// ValidateResult is what the request validator hands to the tracker loader.
type ValidateResult struct {
	MerchantID string
	PaymentID  string
	Scheme     models.StorageScheme
}

// Operation is the set of stages a payment operation of flow F implements.
// Req is the caller's request and FReq the connector request payload of F.
type Operation[F types.Flow, Req any, FReq any] interface {
	Name() models.Operation
	// ValidateRequest never performs I/O.
	ValidateRequest(req *Req, merchant *models.MerchantAccount) (ValidateResult, error)
	// GetTrackers loads the current state and enforces the operation's
	// preconditions. It never writes.
	GetTrackers(ctx context.Context, c *Core, v ValidateResult, req *Req) (*PaymentData[F], error)
	Domain(ctx context.Context, c *Core, data *PaymentData[F], req *Req, merchant *models.MerchantAccount) error
	// CallAction picks the connector call mode given the mode the caller asked for.
	CallAction(data *PaymentData[F], requested services.CallConnectorAction) services.CallConnectorAction
	ConnectorRequest(data *PaymentData[F]) (FReq, error)
	// UpdateTrackers is the only stage that writes payment state.
	UpdateTrackers(ctx context.Context, c *Core, data *PaymentData[F], rd types.RouterData[F, FReq, types.PaymentsResponseData]) error
}

// Checkpointer is implemented by operations that persist an idempotent
// status before the connector is called, so a crash mid call can be
// recovered by a later sync.
type Checkpointer[F types.Flow] interface {
	Checkpoint(ctx context.Context, c *Core, data *PaymentData[F]) error
}

// Core holds the collaborators every pipeline execution shares.
type Core struct {
	store     interfaces.StorageInterface
	vault     interfaces.PaymentMethodVault
	publisher interfaces.EventPublisher
	steps     services.StepContext
	vaultTTL  time.Duration

	// pending holds state changes announced inside a transaction.
	pending *[]models.PaymentStateChangedEvent
}

func NewCore(
	store interfaces.StorageInterface,
	vault interfaces.PaymentMethodVault,
	publisher interfaces.EventPublisher,
	steps services.StepContext,
	vaultTTL time.Duration,
) *Core {
	return &Core{
		store:     store,
		vault:     vault,
		publisher: publisher,
		steps:     steps,
		vaultTTL:  vaultTTL,
	}
}

func (c *Core) Store() interfaces.StorageInterface { return c.store }

func (c *Core) Steps() services.StepContext { return c.steps }
