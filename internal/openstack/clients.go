// Package openstack builds the service clients used by the OpenStack
// collectors. Credentials come from the standard OS_* environment
// variables, the same ones the openstack CLI reads.
package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
)

// Clients bundles the per-service API clients.
type Clients struct {
	Provider *gophercloud.ProviderClient
	Compute  *gophercloud.ServiceClient
	Network  *gophercloud.ServiceClient
	Volume   *gophercloud.ServiceClient
}

// NewClients authenticates against keystone and builds the service
// clients for the given region.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	opts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read OS_* environment: %w", err)
	}
	opts.AllowReauth = true

	provider, err := openstack.AuthenticatedClient(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with openstack: %w", err)
	}

	endpoint := gophercloud.EndpointOpts{Region: region}

	compute, err := openstack.NewComputeV2(provider, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}
	network, err := openstack.NewNetworkV2(provider, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create network client: %w", err)
	}
	volume, err := openstack.NewBlockStorageV3(provider, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create volume client: %w", err)
	}

	return &Clients{
		Provider: provider,
		Compute:  compute,
		Network:  network,
		Volume:   volume,
	}, nil
}
