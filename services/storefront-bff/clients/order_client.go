package clients

import (
	"context"
	"net/http"

	"github.com/jewelrybyluna/storefront/services/common/auth"
	"github.com/jewelrybyluna/storefront/services/storefront-bff/models"
)

// OrderClient submits order requests on behalf of one shopper.
type OrderClient struct {
	gateway *GatewayClient
	session auth.Session
}

func NewOrderClient(gateway *GatewayClient, session auth.Session) *OrderClient {
	return &OrderClient{gateway: gateway, session: session}
}

func (c *OrderClient) RequestOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	var resp models.OrderResponse
	if err := c.gateway.DoJSON(ctx, http.MethodPost, "/orders/request", c.session.Token(), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
