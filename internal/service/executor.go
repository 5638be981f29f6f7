package service

import (
	"context"
	"errors"
	"fmt"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/gateway"

	"github.com/google/uuid"
)

// ExecutionAck is a venue's acknowledgement of an executed intent
type ExecutionAck struct {
	OrderID string
	Price   float64
	Amount  float64
}

// OrderExecutor places a strategy's trade intent on a venue
type OrderExecutor interface {
	Execute(ctx context.Context, bot *model.Bot, intent model.TradeIntent) (*ExecutionAck, error)
}

// PaperExecutor fills every intent immediately at its requested price
type PaperExecutor struct{}

func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

func (e *PaperExecutor) Execute(ctx context.Context, bot *model.Bot, intent model.TradeIntent) (*ExecutionAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ExecutionAck{
		OrderID: "paper-" + uuid.NewString(),
		Price:   intent.Price,
		Amount:  intent.Amount,
	}, nil
}

// OrderGateway is the subset of the gateway client used to place orders
type OrderGateway interface {
	SubmitOrder(ctx context.Context, creds gateway.Credentials, order gateway.OrderRequest) (*gateway.OrderAck, error)
}

// CredentialSource resolves the decrypted credentials of a connection on behalf of its owner
type CredentialSource interface {
	Credentials(ctx context.Context, connectionID, ownerID string) (model.Credentials, error)
}

// GatewayExecutor submits orders to the trading gateway with the bot's connection credentials
type GatewayExecutor struct {
	client OrderGateway
	creds  CredentialSource
}

func NewGatewayExecutor(client OrderGateway, creds CredentialSource) *GatewayExecutor {
	return &GatewayExecutor{client: client, creds: creds}
}

func (e *GatewayExecutor) Execute(ctx context.Context, bot *model.Bot, intent model.TradeIntent) (*ExecutionAck, error) {
	creds, err := e.creds.Credentials(ctx, bot.ExchangeID, bot.OwnerID)
	if err != nil {
		return nil, err
	}

	ack, err := e.client.SubmitOrder(ctx, gatewayCredentials(creds), gateway.OrderRequest{
		Pair:   bot.Pair,
		Side:   string(intent.Side),
		Price:  intent.Price,
		Amount: intent.Amount,
		Venue:  intent.Venue,
	})
	if err != nil {
		return nil, fmt.Errorf("order rejected: %w", err)
	}

	out := &ExecutionAck{OrderID: ack.OrderID, Price: ack.Price, Amount: ack.Amount}
	if out.Price <= 0 {
		out.Price = intent.Price
	}
	if out.Amount <= 0 {
		out.Amount = intent.Amount
	}
	return out, nil
}

// RoutingExecutor sends paper bots to the paper executor and live bots to the venue
type RoutingExecutor struct {
	paper OrderExecutor
	live  OrderExecutor
}

var errLiveTradingDisabled = errors.New("live trading is not configured")

func NewRoutingExecutor(paper, live OrderExecutor) *RoutingExecutor {
	return &RoutingExecutor{paper: paper, live: live}
}

func (e *RoutingExecutor) Execute(ctx context.Context, bot *model.Bot, intent model.TradeIntent) (*ExecutionAck, error) {
	if bot.IsPaperTrading {
		return e.paper.Execute(ctx, bot, intent)
	}
	if e.live == nil {
		return nil, errLiveTradingDisabled
	}
	return e.live.Execute(ctx, bot, intent)
}

func gatewayCredentials(c model.Credentials) gateway.Credentials {
	key := c.APIKey
	if key == "" {
		key = c.WalletAddress
	}
	return gateway.Credentials{Key: key, Secret: c.APISecret}
}
