package customerclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// CustomerClient resolves customer ids against the back-office
// customer directory.
type CustomerClient interface {
	Exists(ctx context.Context, customerID string) (bool, error)
}

type customerClient struct {
	serviceAddr string
}

func NewCustomerClient(serviceAddr string) CustomerClient {
	return customerClient{serviceAddr: serviceAddr}
}

func (client customerClient) Exists(ctx context.Context, customerID string) (bool, error) {
	path := "/api/customers/"

	setreq := resty.New().R()
	setreq.Method = http.MethodGet
	setreq.URL = client.serviceAddr + path + customerID
	setreq.SetContext(ctx)
	setresp, err := setreq.Send()
	if err != nil {
		return false, err
	}

	switch setresp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("customer directory status: %d", setresp.StatusCode())
	}
}
